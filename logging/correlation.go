package logging

import (
	"context"
	"runtime/debug"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Correlation identifies the request a record belongs to. It lives only in a
// request-scoped context.Context.
type Correlation struct {
	RequestID string
	UserID    string
}

type correlationKey struct{}

// WithCorrelation stores c in ctx.
func WithCorrelation(ctx context.Context, c Correlation) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationKey{}, c)
}

// CorrelationFrom returns the correlation stored in ctx, if any.
func CorrelationFrom(ctx context.Context) (Correlation, bool) {
	if ctx == nil {
		return Correlation{}, false
	}
	c, ok := ctx.Value(correlationKey{}).(Correlation)
	return c, ok
}

// WithUserID sets the user of the correlation already stored in ctx, or
// starts a new one carrying only the user.
func WithUserID(ctx context.Context, userID string) context.Context {
	c, _ := CorrelationFrom(ctx)
	c.UserID = userID
	return WithCorrelation(ctx, c)
}

// contextHook adds correlation and trace identifiers from the event's
// context, and a stack trace to error records when backtraces are enabled.
type contextHook struct {
	backtrace bool
}

func (h contextHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	if h.backtrace && level >= zerolog.ErrorLevel && level < zerolog.NoLevel {
		e.Str(StackField, string(debug.Stack()))
	}

	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	if c, ok := CorrelationFrom(ctx); ok {
		if c.RequestID != emptyString {
			e.Str(RequestIDField, c.RequestID)
		}
		if c.UserID != emptyString {
			e.Str(UserIDField, c.UserID)
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e.Str(TraceIDField, sc.TraceID().String())
		e.Str(SpanIDField, sc.SpanID().String())
	}
}
