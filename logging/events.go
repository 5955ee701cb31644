package logging

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LogPerformance records how long an operation took.
func LogPerformance(l Logger, ctx context.Context, operation string, d time.Duration, extra map[string]interface{}) {
	l.InfoWith().Ctx(ctx).
		Bool("performance", true).
		Str("operation", operation).
		Float64("duration", d.Seconds()).
		Fields(extra).
		Msg(fmt.Sprintf("Performance: %s completed in %.4fs", operation, d.Seconds()))
}

// LogBusinessEvent records a domain event such as a registration or a login.
func LogBusinessEvent(l Logger, ctx context.Context, event string, extra map[string]interface{}) {
	l.InfoWith().Ctx(ctx).
		Bool("business_event", true).
		Str("event", event).
		Fields(extra).
		Msg("Business Event: " + event)
}

// LogSecurityEvent records a security relevant event at the given severity
// ("INFO", "WARNING", "ERROR", ...). Unknown severities are logged at info.
func LogSecurityEvent(l Logger, ctx context.Context, event, severity string, extra map[string]interface{}) {
	if severity == emptyString {
		severity = "INFO"
	}
	var ev LogEvent
	switch strings.ToLower(severity) {
	case "debug":
		ev = l.DebugWith()
	case "warn", "warning":
		ev = l.WarnWith()
	case "error", "critical":
		ev = l.ErrorWith()
	default:
		ev = l.InfoWith()
	}
	ev.Ctx(ctx).
		Bool("security_event", true).
		Str("event", event).
		Str("severity", severity).
		Fields(extra).
		Msg("Security Event: " + event)
}

// Operation times a unit of work between StartOperation and End.
type Operation struct {
	logger Logger
	ctx    context.Context
	name   string
	extra  map[string]interface{}
	start  time.Time
}

// StartOperation logs the start of name at debug level and returns the
// timer to End once the work finishes.
func StartOperation(l Logger, ctx context.Context, name string, extra map[string]interface{}) *Operation {
	if l == nil {
		l = Nop()
	}
	l.DebugWith().Ctx(ctx).Str("operation", name).Msg("Starting operation: " + name)
	return &Operation{logger: l, ctx: ctx, name: name, extra: extra, start: time.Now()}
}

// End logs the outcome of the operation: an error record when err is not
// nil, otherwise a completion record. It returns err unchanged so it can
// be used in a return statement.
func (o *Operation) End(err error) error {
	d := time.Since(o.start)
	if err != nil {
		o.logger.ErrorWith().Ctx(o.ctx).
			Bool("performance", true).
			Str("operation", o.name).
			Float64("duration", d.Seconds()).
			Err(err).
			Fields(o.extra).
			Msg("Operation failed: " + o.name)
		return err
	}
	o.logger.InfoWith().Ctx(o.ctx).
		Bool("performance", true).
		Str("operation", o.name).
		Float64("duration", d.Seconds()).
		Fields(o.extra).
		Msg("Operation completed: " + o.name)
	return nil
}
