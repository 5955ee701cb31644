// Package middleware holds the net/http instrumentation placed in front of
// the service's handlers.
package middleware

import (
	"strings"
	"time"

	"github.com/authforge/authcore/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	redacted      = "[REDACTED]"
	unknownClient = "unknown"
	tracerName    = "github.com/authforge/authcore/middleware"
)

// credentialMarkers are matched case-insensitively against a captured body;
// a body containing any of them is not logged. "token" also covers
// access_token and refresh_token.
var credentialMarkers = [][]byte{
	[]byte("password"),
	[]byte("token"),
	[]byte("secret"),
	[]byte("api_key"),
	[]byte("apikey"),
}

// clientIPHeaders are consulted in order before falling back to the peer
// address. Only the first entry of a comma separated list is used.
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Client-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
}

// Options configure Instrument.
type Options struct {
	ExcludedPaths      []string
	SensitiveHeaders   []string
	MaxBodyBytes       int
	SlowThreshold      time.Duration
	RequestIDHeader    string
	ResponseTimeHeader string

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	// NewRequestID defaults to a time ordered UUID.
	NewRequestID func() string
}

// OptionsFromSettings maps the REQUEST_* settings onto Options.
func OptionsFromSettings(s *config.Settings) Options {
	return Options{
		ExcludedPaths:      s.ExcludedPathsList(),
		SensitiveHeaders:   s.SensitiveHeadersList(),
		MaxBodyBytes:       s.Request.MaxBodyBytes,
		SlowThreshold:      s.Request.SlowThreshold,
		RequestIDHeader:    s.Request.RequestIDHeader,
		ResponseTimeHeader: s.Request.ResponseTimeHeader,
	}
}

func (o Options) withDefaults() Options {
	if o.RequestIDHeader == "" {
		o.RequestIDHeader = "X-Request-ID"
	}
	if o.ResponseTimeHeader == "" {
		o.ResponseTimeHeader = "X-Response-Time"
	}
	if o.TracerProvider == nil {
		o.TracerProvider = otel.GetTracerProvider()
	}
	if o.NewRequestID == nil {
		o.NewRequestID = newRequestID
	}
	return o
}

func lowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = struct{}{}
	}
	return set
}
