package logging

import (
	stderrs "errors"
	"fmt"
	"strings"

	smerrors "github.com/Station-Manager/errors"
	"github.com/rs/zerolog"
)

// levelAliases maps the level names accepted in LOG_LEVEL that zerolog does
// not know itself.
var levelAliases = map[string]string{
	"warning":  "warn",
	"critical": "fatal",
	"success":  "info",
}

// parseLevel parses a case-insensitive level name into a zerolog.Level.
// Returns zerolog.NoLevel and an error if parsing fails.
func parseLevel(level string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	if alias, ok := levelAliases[name]; ok {
		name = alias
	}
	if name == emptyString {
		return zerolog.NoLevel, fmt.Errorf("empty log level")
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, err
	}
	return l, nil
}

// errorType names the concrete type of the outermost error, e.g. "*fs.PathError".
func errorType(err error) string {
	return fmt.Sprintf("%T", err)
}

// kinded is implemented by errors that belong to a closed classification,
// such as database.Error.
type kinded interface {
	ErrorKind() string
}

// errorKind returns the classification of the first kinded error in the
// chain, or "" when there is none.
func errorKind(err error) string {
	var k kinded
	if stderrs.As(err, &k) {
		return k.ErrorKind()
	}
	return emptyString
}

// buildErrorChain walks an error's cause chain and returns:
//   - chain: outermost -> innermost error messages
//   - ops: operation identifiers for DetailedError links ("" if not available)
//   - root: the innermost error message
//   - rootOp: the innermost operation identifier if available
//
// Each link is inspected on its own: a DetailedError link contributes its op
// and continues through Cause(), any other link through errors.Unwrap. Depth
// is capped and repeated messages end the walk.
func buildErrorChain(err error) (chain []string, ops []string, root string, rootOp string) {
	const maxDepth = 50
	seen := map[string]bool{}

	for depth := 0; err != nil && depth < maxDepth; depth++ {
		if dErr, ok := err.(*smerrors.DetailedError); ok && dErr != nil {
			chain = append(chain, dErr.Error())
			ops = append(ops, string(dErr.Op()))
			err = dErr.Cause()
			continue
		}

		msg := err.Error()
		if seen[msg] {
			break
		}
		seen[msg] = true
		chain = append(chain, msg)
		ops = append(ops, emptyString)
		err = stderrs.Unwrap(err)
	}

	if n := len(chain); n > 0 {
		root = chain[n-1]
		rootOp = ops[n-1]
	}
	return
}

// joinChain returns a single string for the error chain separated by " -> ".
func joinChain(chain []string) string {
	return strings.Join(chain, " -> ")
}

// trackedEvent creates an event at level on logger, or on the service's
// current logger when logger is nil. The event is counted as in flight until
// it is written so Configure and Close can drain it. A disabled level yields
// a no-op LogEvent.
func (s *Service) trackedEvent(logger *zerolog.Logger, level zerolog.Level) LogEvent {
	if s == nil || !s.isInitialized.Load() || level == zerolog.NoLevel {
		return newLogEvent(nil)
	}

	s.activeOps.Add(1)
	s.wg.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isInitialized.Load() {
		return newTrackedLogEvent(nil, s)
	}
	if logger == nil {
		logger = s.logger.Load()
	}
	if logger == nil || logger.GetLevel() > level {
		return newTrackedLogEvent(nil, s)
	}

	return newTrackedLogEvent(eventAt(logger, level), s)
}

// eventAt keeps Fatal and Panic semantics, which zerolog's WithLevel drops.
func eventAt(logger *zerolog.Logger, level zerolog.Level) *zerolog.Event {
	switch level {
	case zerolog.FatalLevel:
		return logger.Fatal()
	case zerolog.PanicLevel:
		return logger.Panic()
	default:
		return logger.WithLevel(level)
	}
}
