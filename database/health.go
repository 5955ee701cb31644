package database

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// PoolStatus is a snapshot of pool occupancy.
type PoolStatus struct {
	Type      string `json:"pool_type,omitempty"`
	MaxOpen   int    `json:"max_open"`
	Open      int    `json:"open"`
	InUse     int    `json:"checked_out"`
	Idle      int    `json:"checked_in"`
	WaitCount int64  `json:"wait_count"`
}

// Health is the payload served by liveness and readiness probes.
type Health struct {
	Status         string     `json:"status"`
	ResponseTimeMS float64    `json:"response_time_ms"`
	Pool           PoolStatus `json:"pool_status"`
	DatabaseURL    string     `json:"database_url"`
	Error          string     `json:"error,omitempty"`
}

func (h Health) Healthy() bool { return h.Status == StatusHealthy }
