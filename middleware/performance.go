package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/authforge/authcore/logging"
)

// Performance reports requests slower than slow at info level and requests
// slower than verySlow at warn level. A non-positive threshold is disabled.
func Performance(logger logging.Logger, slow, verySlow time.Duration) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			d := time.Since(start)

			var (
				ev        logging.LogEvent
				flag      string
				threshold time.Duration
				msg       string
			)
			switch {
			case verySlow > 0 && d > verySlow:
				ev, flag, threshold, msg = logger.WarnWith(), "very_slow", verySlow, "Very slow request"
			case slow > 0 && d > slow:
				ev, flag, threshold, msg = logger.InfoWith(), "slow", slow, "Slow request"
			default:
				return
			}
			ev.Ctx(r.Context()).
				Bool("performance", true).
				Bool(flag, true).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Float64("duration", d.Seconds()).
				Float64("threshold", threshold.Seconds()).
				Msg(fmt.Sprintf("%s: %s %s", msg, r.Method, r.URL.Path))
		})
	}
}
