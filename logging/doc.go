// Package logging provides a concurrency-safe wrapper over rs/zerolog with a
// structured-first API, a registry of independently configured sinks, and
// request correlation carried through context.Context.
//
// Key features
//   - Sinks: console, file, exception-only and request-only destinations, each
//     with its own level, format (text or json), rotation, retention and
//     compression
//   - Time or size based rotation via lumberjack; retention by age or count
//   - Correlation: request_id / user_id / trace_id are pulled from the context
//     attached to an event with Ctx(ctx)
//   - Sink failures are swallowed and counted, never returned to callers
//   - Graceful shutdown that waits for in-flight logs (bounded timeout)
//   - Error history enrichment: for any Err/AnErr, the logger includes
//     the full error chain (outermost -> root), the root cause string, a
//     joined human-readable history, the operations chain (when using
//     Station-Manager DetailedError), and the root operation if available.
//
// Typical usage
//
//	svc := &logging.Service{Config: &settings.Logging, App: logging.AppInfo{Name: "auth"}}
//	if err := svc.Initialize(); err != nil { panic(err) }
//	defer svc.Close()
//
//	ctx = logging.WithCorrelation(ctx, logging.Correlation{RequestID: rid})
//	svc.InfoWith().Ctx(ctx).Str("user_id", id).Msg("processed")
//	req := svc.With().Str("component", "users").Logger()
//	req.ErrorWith().Err(err).Msg("failed")
package logging
