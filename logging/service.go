package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/Station-Manager/errors"
	"github.com/authforge/authcore/config"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// AppInfo is stamped on every record.
type AppInfo struct {
	Name        string
	Version     string
	Environment string
}

// Service owns the sink registry and the zerolog logger built over it.
// The zero value logs nothing until Initialize or Configure succeeds.
type Service struct {
	Config *config.Logging
	App    AppInfo
	// Console receives the console sink; os.Stdout when nil.
	Console io.Writer
	// Now is the clock used for time based rotation; time.Now when nil.
	Now func() time.Time

	logger        atomic.Pointer[zerolog.Logger]
	isInitialized atomic.Bool
	mu            sync.RWMutex
	wg            sync.WaitGroup
	activeOps     atomic.Int64
	dropped       atomic.Int64

	sinks           []*sink
	shutdownTimeout time.Duration
	shutdownWarning bool
	warnings        []string
}

var callerOnce sync.Once

// Initialize configures the service from its Config. Calling it again on an
// initialized service is a no-op; use Configure to apply new settings.
func (s *Service) Initialize() error {
	const op errors.Op = "logging.Service.Initialize"
	if s == nil {
		return errors.New(op).Msg(errMsgNilService)
	}
	if s.isInitialized.Load() {
		return nil
	}
	return s.Configure(s.Config)
}

// Configure rebuilds the sink registry from cfg and swaps it in atomically.
// Events already in flight finish on the previous sinks, which are closed
// once they drain or the shutdown timeout passes. Applying the same cfg
// twice yields an equivalent registry. Unparseable level, rotation or
// retention values fall back to their defaults and are listed by Warnings.
func (s *Service) Configure(cfg *config.Logging) error {
	const op errors.Op = "logging.Service.Configure"
	if s == nil {
		return errors.New(op).Msg(errMsgNilService)
	}

	plans, warnings, err := planSinks(cfg)
	if err != nil {
		return err
	}

	sinks := make([]*sink, 0, len(plans))
	minLevel := zerolog.Disabled
	for _, p := range plans {
		sk, err := s.openSink(p.sc, p.level, p.rotation, p.retention)
		if err != nil {
			closeSinks(sinks)
			return err
		}
		sinks = append(sinks, sk)
		if p.level < minLevel {
			minLevel = p.level
		}
	}

	callerOnce.Do(func() {
		zerolog.CallerMarshalFunc = marshalCaller
	})

	zc := zerolog.New(sinkWriter(sinks)).Level(minLevel).With().
		Timestamp().
		Int(PIDField, os.Getpid())
	if s.App.Environment != emptyString {
		zc = zc.Str(EnvironmentField, s.App.Environment)
	}
	if s.App.Name != emptyString {
		zc = zc.Str(AppNameField, s.App.Name)
	}
	if s.App.Version != emptyString {
		zc = zc.Str(AppVersionField, s.App.Version)
	}
	if cfg.SkipFrameCount > 0 {
		zc = zc.CallerWithSkipFrameCount(cfg.SkipFrameCount)
	}
	logger := zc.Logger().Hook(contextHook{backtrace: cfg.Backtrace})

	timeout := time.Duration(cfg.ShutdownTimeoutMS) * time.Millisecond

	s.mu.Lock()
	previous := s.sinks
	s.sinks = sinks
	s.Config = cfg
	s.shutdownTimeout = timeout
	s.shutdownWarning = cfg.ShutdownWarning
	s.warnings = warnings
	s.logger.Store(&logger)
	s.isInitialized.Store(true)
	s.mu.Unlock()

	if len(previous) > 0 {
		s.waitInFlight(timeout)
		closeSinks(previous)
	}
	return nil
}

// marshalCaller renders the caller as "function file:line".
func marshalCaller(pc uintptr, file string, line int) string {
	loc := filepath.Base(file) + ":" + strconv.Itoa(line)
	if fn := runtime.FuncForPC(pc); fn != nil {
		return filepath.Base(fn.Name()) + " " + loc
	}
	return loc
}

// waitInFlight reports whether all in-flight events finished within timeout.
func (s *Service) waitInFlight(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func closeSinks(sinks []*sink) error {
	var first error
	for _, sk := range sinks {
		if err := sk.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close stops the service and closes every sink. It waits up to the
// configured shutdown timeout for in-flight events and, if they do not
// finish, emits a warning with the number still outstanding. It is safe to
// call Close multiple times.
func (s *Service) Close() error {
	const op errors.Op = "logging.Service.Close"
	if s == nil || !s.isInitialized.Load() {
		return nil
	}

	s.mu.Lock()
	if !s.isInitialized.Load() {
		s.mu.Unlock()
		return nil
	}
	s.isInitialized.Store(false)
	sinks := s.sinks
	s.sinks = nil
	timeout, warn := s.shutdownTimeout, s.shutdownWarning
	if s.Config != nil {
		timeout = time.Duration(s.Config.ShutdownTimeoutMS) * time.Millisecond
		warn = s.Config.ShutdownWarning
	}
	s.mu.Unlock()

	if !s.waitInFlight(timeout) && warn {
		if logger := s.logger.Load(); logger != nil {
			logger.Warn().
				Int64("active_operations", s.activeOps.Load()).
				Dur("timeout", timeout).
				Msg("Logger shutdown timeout exceeded")
		}
	}
	s.logger.Store(nil)

	if err := closeSinks(sinks); err != nil {
		return errors.New(op).Err(err).Msg(errMsgSinkClose)
	}
	return nil
}

// DroppedWrites is the number of records a sink failed to write since the
// service was created.
func (s *Service) DroppedWrites() int64 {
	return s.dropped.Load()
}

// ActiveOperations is the number of events created but not yet written.
func (s *Service) ActiveOperations() int64 {
	return s.activeOps.Load()
}

// Warnings lists the sink options the last Configure replaced with their
// defaults because they did not parse.
func (s *Service) Warnings() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.warnings...)
}

// release marks one in-flight event as written.
func (s *Service) release() {
	s.activeOps.Add(-1)
	s.wg.Done()
}

// Hook installs zerolog hooks on the current logger.
func (s *Service) Hook(hooks ...zerolog.Hook) {
	if !s.isInitialized.Load() {
		return
	}
	for {
		oldLogger := s.logger.Load()
		if oldLogger == nil {
			return
		}
		newLogger := oldLogger.Hook(hooks...)
		if s.logger.CompareAndSwap(oldLogger, &newLogger) {
			return
		}
	}
}

// String describes the active sinks, for startup diagnostics.
func (s *Service) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sinks))
	for _, sk := range s.sinks {
		names = append(names, fmt.Sprintf("%s>=%s", sk.name, sk.level))
	}
	return fmt.Sprintf("logging.Service%v", names)
}

// InfoWith returns a LogEvent for structured Info-level logging.
// Example: logger.InfoWith().Str("user_id", id).Int("count", 5).Msg("User processed")
func (s *Service) InfoWith() LogEvent { return s.trackedEvent(nil, zerolog.InfoLevel) }

// WarnWith returns a LogEvent for structured Warn-level logging.
func (s *Service) WarnWith() LogEvent { return s.trackedEvent(nil, zerolog.WarnLevel) }

// ErrorWith returns a LogEvent for structured Error-level logging.
// Example: logger.ErrorWith().Err(err).Str("operation", "database").Msg("Query failed")
func (s *Service) ErrorWith() LogEvent { return s.trackedEvent(nil, zerolog.ErrorLevel) }

func (s *Service) DebugWith() LogEvent { return s.trackedEvent(nil, zerolog.DebugLevel) }
func (s *Service) TraceWith() LogEvent { return s.trackedEvent(nil, zerolog.TraceLevel) }

// FatalWith returns a LogEvent for Fatal-level logging.
// The program exits after the record is written.
func (s *Service) FatalWith() LogEvent { return s.trackedEvent(nil, zerolog.FatalLevel) }

// PanicWith returns a LogEvent that panics after the record is written.
func (s *Service) PanicWith() LogEvent { return s.trackedEvent(nil, zerolog.PanicLevel) }

// With returns a LogContext for creating a child logger with pre-populated fields.
// Example: reqLogger := logger.With().Str("request_id", id).Logger()
func (s *Service) With() LogContext {
	if s == nil || !s.isInitialized.Load() {
		return &noopLogContext{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logger := s.logger.Load()
	if !s.isInitialized.Load() || logger == nil {
		return &noopLogContext{}
	}
	return &logContext{
		context: logger.With(),
		service: s,
	}
}
