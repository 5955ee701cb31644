package logging

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogContext builds a child logger whose fields are included in every record
// it emits.
type LogContext interface {
	Str(key, val string) LogContext
	Strs(key string, vals []string) LogContext
	Int(key string, val int) LogContext
	Int64(key string, val int64) LogContext
	Bool(key string, val bool) LogContext
	Dur(key string, val time.Duration) LogContext
	Err(err error) LogContext
	Interface(key string, val interface{}) LogContext
	// Ctx binds a context; correlation values found in it are added to every
	// record of the resulting logger.
	Ctx(ctx context.Context) LogContext
	// Logger creates and returns the new context logger
	Logger() Logger
}

// LogEvent is one record under construction. Nothing is written until Msg,
// Msgf or Send is called.
type LogEvent interface {
	Str(key, val string) LogEvent
	Strs(key string, vals []string) LogEvent
	Stringer(key string, val interface{ String() string }) LogEvent
	Int(key string, val int) LogEvent
	Int64(key string, val int64) LogEvent
	Uint64(key string, val uint64) LogEvent
	Float64(key string, val float64) LogEvent
	Bool(key string, val bool) LogEvent
	Time(key string, val time.Time) LogEvent
	Dur(key string, val time.Duration) LogEvent
	Err(err error) LogEvent
	AnErr(key string, err error) LogEvent
	Bytes(key string, val []byte) LogEvent
	Interface(key string, val interface{}) LogEvent
	Dict(key string, dict func(LogEvent)) LogEvent
	// Fields adds caller supplied extras in one call.
	Fields(fields map[string]interface{}) LogEvent
	// Ctx attaches the context whose correlation values the record carries.
	Ctx(ctx context.Context) LogEvent
	// Request tags the record for the request-only sink.
	Request() LogEvent
	Msg(msg string)
	Msgf(format string, v ...interface{})
	Send()
}

// logEvent implements LogEvent by wrapping zerolog.Event. A tracked event
// carries done, which releases the owning service's in-flight count when the
// record is written; every field method returns the same value so chained
// calls keep it.
type logEvent struct {
	event *zerolog.Event
	done  func()
}

func newLogEvent(e *zerolog.Event) LogEvent {
	return &logEvent{event: e}
}

// newTrackedLogEvent expects the caller to have already counted the event in
// activeOps/wg. A nil event releases that count immediately.
func newTrackedLogEvent(e *zerolog.Event, s *Service) LogEvent {
	if s == nil {
		return &logEvent{event: nil}
	}
	if e == nil {
		s.release()
		return &logEvent{event: nil}
	}
	return &logEvent{event: e, done: s.release}
}

func (e *logEvent) Str(key, val string) LogEvent {
	if e.event != nil {
		e.event.Str(key, val)
	}
	return e
}

func (e *logEvent) Strs(key string, vals []string) LogEvent {
	if e.event != nil {
		e.event.Strs(key, vals)
	}
	return e
}

func (e *logEvent) Stringer(key string, val interface{ String() string }) LogEvent {
	if e.event != nil {
		e.event.Stringer(key, val)
	}
	return e
}

func (e *logEvent) Int(key string, val int) LogEvent {
	if e.event != nil {
		e.event.Int(key, val)
	}
	return e
}

func (e *logEvent) Int64(key string, val int64) LogEvent {
	if e.event != nil {
		e.event.Int64(key, val)
	}
	return e
}

func (e *logEvent) Uint64(key string, val uint64) LogEvent {
	if e.event != nil {
		e.event.Uint64(key, val)
	}
	return e
}

func (e *logEvent) Float64(key string, val float64) LogEvent {
	if e.event != nil {
		e.event.Float64(key, val)
	}
	return e
}

func (e *logEvent) Bool(key string, val bool) LogEvent {
	if e.event != nil {
		e.event.Bool(key, val)
	}
	return e
}

func (e *logEvent) Time(key string, val time.Time) LogEvent {
	if e.event != nil {
		e.event.Time(key, val)
	}
	return e
}

func (e *logEvent) Dur(key string, val time.Duration) LogEvent {
	if e.event != nil {
		e.event.Dur(key, val)
	}
	return e
}

func (e *logEvent) Err(err error) LogEvent {
	if e.event != nil {
		e.event.Err(err)
		if err != nil {
			addErrorDetail(e.event, zerolog.ErrorFieldName, err)
		}
	}
	return e
}

func (e *logEvent) AnErr(key string, err error) LogEvent {
	if e.event != nil {
		e.event.AnErr(key, err)
		if err != nil {
			addErrorDetail(e.event, key, err)
		}
	}
	return e
}

// addErrorDetail writes the structured exception detail next to an error
// field: its type, its closed kind when it has one, and the full cause chain.
func addErrorDetail(ev *zerolog.Event, key string, err error) {
	ev.Str(key+"_type", errorType(err))
	if kind := errorKind(err); kind != emptyString {
		ev.Str(key+"_kind", kind)
	}
	chain, ops, root, rootOp := buildErrorChain(err)
	if len(chain) == 0 {
		return
	}
	ev.Strs(key+"_chain", chain)
	ev.Str(key+"_root", root)
	ev.Str(key+"_history", joinChain(chain))
	ev.Strs(key+"_ops", ops)
	if rootOp != emptyString {
		ev.Str(key+"_root_op", rootOp)
	}
}

func (e *logEvent) Bytes(key string, val []byte) LogEvent {
	if e.event != nil {
		e.event.Bytes(key, val)
	}
	return e
}

func (e *logEvent) Interface(key string, val interface{}) LogEvent {
	if e.event != nil {
		e.event.Interface(key, val)
	}
	return e
}

// Dict for nested objects
func (e *logEvent) Dict(key string, dict func(LogEvent)) LogEvent {
	if e.event != nil {
		dictEvent := zerolog.Dict()
		dict(newLogEvent(dictEvent))
		e.event.Dict(key, dictEvent)
	}
	return e
}

func (e *logEvent) Fields(fields map[string]interface{}) LogEvent {
	if e.event != nil && len(fields) > 0 {
		e.event.Fields(fields)
	}
	return e
}

func (e *logEvent) Ctx(ctx context.Context) LogEvent {
	if e.event != nil && ctx != nil {
		e.event.Ctx(ctx)
	}
	return e
}

func (e *logEvent) Request() LogEvent {
	if e.event != nil {
		e.event.Bool(RequestField, true)
	}
	return e
}

// finish runs the completion hook at most once.
func (e *logEvent) finish() {
	if e.done != nil {
		done := e.done
		e.done = nil
		done()
	}
}

func (e *logEvent) Msg(msg string) {
	defer e.finish()
	if e.event != nil {
		e.event.Msg(msg)
	}
}

func (e *logEvent) Msgf(format string, v ...interface{}) {
	defer e.finish()
	if e.event != nil {
		e.event.Msgf(format, v...)
	}
}

func (e *logEvent) Send() {
	defer e.finish()
	if e.event != nil {
		e.event.Send()
	}
}

// logContext implements LogContext by wrapping zerolog.Context
type logContext struct {
	context zerolog.Context
	service *Service
}

// contextLogger is a child logger. Resource management (sinks, shutdown)
// stays with the parent Service so children never own writers.
type contextLogger struct {
	logger *zerolog.Logger
	parent *Service
}

func (cl *contextLogger) event(level zerolog.Level) LogEvent {
	if cl.logger == nil || cl.parent == nil {
		return newLogEvent(nil)
	}
	return cl.parent.trackedEvent(cl.logger, level)
}

func (cl *contextLogger) TraceWith() LogEvent { return cl.event(zerolog.TraceLevel) }
func (cl *contextLogger) DebugWith() LogEvent { return cl.event(zerolog.DebugLevel) }
func (cl *contextLogger) InfoWith() LogEvent  { return cl.event(zerolog.InfoLevel) }
func (cl *contextLogger) WarnWith() LogEvent  { return cl.event(zerolog.WarnLevel) }
func (cl *contextLogger) ErrorWith() LogEvent { return cl.event(zerolog.ErrorLevel) }
func (cl *contextLogger) FatalWith() LogEvent { return cl.event(zerolog.FatalLevel) }
func (cl *contextLogger) PanicWith() LogEvent { return cl.event(zerolog.PanicLevel) }

func (cl *contextLogger) With() LogContext {
	if cl.logger == nil || cl.parent == nil || !cl.parent.isInitialized.Load() {
		return &noopLogContext{}
	}

	cl.parent.mu.RLock()
	defer cl.parent.mu.RUnlock()

	if !cl.parent.isInitialized.Load() {
		return &noopLogContext{}
	}

	return &logContext{
		context: cl.logger.With(),
		service: cl.parent,
	}
}

func (c *logContext) Str(key, val string) LogContext {
	c.context = c.context.Str(key, val)
	return c
}

func (c *logContext) Strs(key string, vals []string) LogContext {
	c.context = c.context.Strs(key, vals)
	return c
}

func (c *logContext) Int(key string, val int) LogContext {
	c.context = c.context.Int(key, val)
	return c
}

func (c *logContext) Int64(key string, val int64) LogContext {
	c.context = c.context.Int64(key, val)
	return c
}

func (c *logContext) Bool(key string, val bool) LogContext {
	c.context = c.context.Bool(key, val)
	return c
}

func (c *logContext) Dur(key string, val time.Duration) LogContext {
	c.context = c.context.Dur(key, val)
	return c
}

func (c *logContext) Err(err error) LogContext {
	c.context = c.context.Err(err)
	return c
}

func (c *logContext) Interface(key string, val interface{}) LogContext {
	c.context = c.context.Interface(key, val)
	return c
}

func (c *logContext) Ctx(ctx context.Context) LogContext {
	if ctx != nil {
		c.context = c.context.Ctx(ctx)
	}
	return c
}

func (c *logContext) Logger() Logger {
	logger := c.context.Logger()
	return &contextLogger{
		logger: &logger,
		parent: c.service,
	}
}

// noopLogContext is a no-op implementation of LogContext
type noopLogContext struct{}

func (n *noopLogContext) Str(key, val string) LogContext                   { return n }
func (n *noopLogContext) Strs(key string, vals []string) LogContext        { return n }
func (n *noopLogContext) Int(key string, val int) LogContext               { return n }
func (n *noopLogContext) Int64(key string, val int64) LogContext           { return n }
func (n *noopLogContext) Bool(key string, val bool) LogContext             { return n }
func (n *noopLogContext) Dur(key string, val time.Duration) LogContext     { return n }
func (n *noopLogContext) Err(err error) LogContext                         { return n }
func (n *noopLogContext) Interface(key string, val interface{}) LogContext { return n }
func (n *noopLogContext) Ctx(ctx context.Context) LogContext               { return n }
func (n *noopLogContext) Logger() Logger                                   { return Nop() }

// noopLogger is a no-op implementation of Logger
type noopLogger struct{}

// Nop returns a Logger that discards everything. Components use it when no
// logger was injected.
func Nop() Logger { return &noopLogger{} }

func (n *noopLogger) TraceWith() LogEvent { return newLogEvent(nil) }
func (n *noopLogger) DebugWith() LogEvent { return newLogEvent(nil) }
func (n *noopLogger) InfoWith() LogEvent  { return newLogEvent(nil) }
func (n *noopLogger) WarnWith() LogEvent  { return newLogEvent(nil) }
func (n *noopLogger) ErrorWith() LogEvent { return newLogEvent(nil) }
func (n *noopLogger) FatalWith() LogEvent { return newLogEvent(nil) }
func (n *noopLogger) PanicWith() LogEvent { return newLogEvent(nil) }
func (n *noopLogger) With() LogContext    { return &noopLogContext{} }
