package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/authforge/authcore/database"
)

// HealthChecker is satisfied by *database.Manager.
type HealthChecker interface {
	HealthCheck(ctx context.Context) database.Health
}

// HealthHandler serves the checker's report as JSON: 200 when healthy, 503
// otherwise.
func HealthHandler(checker HealthChecker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := checker.HealthCheck(r.Context())
		code := http.StatusOK
		if !h.Healthy() {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(h)
	})
}
