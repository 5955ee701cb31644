package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/authforge/authcore/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrument logs every request that is not on an excluded path. Each
// request gets a correlation id that is bound into its context, so every
// record written with that context carries it, and is echoed back in the
// request id header. A panic in next is logged as "Request failed" and
// re-raised with the original value.
func Instrument(logger logging.Logger, opts Options) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	opts = opts.withDefaults()
	excluded := make(map[string]struct{}, len(opts.ExcludedPaths))
	for _, p := range opts.ExcludedPaths {
		excluded[p] = struct{}{}
	}
	sensitive := lowerSet(opts.SensitiveHeaders)
	tracer := opts.TracerProvider.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := excluded[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			requestID := opts.NewRequestID()
			ctx := logging.WithCorrelation(r.Context(), logging.Correlation{RequestID: requestID})
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
					attribute.String("request.id", requestID),
				),
			)
			defer span.End()
			r = r.WithContext(ctx)

			body := captureBody(r, opts.MaxBodyBytes)
			logger.InfoWith().Ctx(ctx).Request().
				Str("method", r.Method).
				Str("url", requestURL(r)).
				Str("path", r.URL.Path).
				Interface("query_params", flatten(r.URL.Query())).
				Interface("headers", sanitizeHeaders(r.Header, sensitive)).
				Str("client_ip", clientIP(r)).
				Str("user_agent", r.UserAgent()).
				Str("content_type", r.Header.Get("Content-Type")).
				Int64("content_length", max(r.ContentLength, 0)).
				Str("request_body", body).
				Str("referer", r.Referer()).
				Str("accept", r.Header.Get("Accept")).
				Str("accept_encoding", r.Header.Get("Accept-Encoding")).
				Str("accept_language", r.Header.Get("Accept-Language")).
				Msg("Request received")

			start := time.Now()
			rec := &recorder{
				ResponseWriter: w,
				start:          start,
				timeHeader:     opts.ResponseTimeHeader,
			}
			w.Header().Set(opts.RequestIDHeader, requestID)

			defer func() {
				rv := recover()
				if rv == nil {
					return
				}
				d := time.Since(start)
				err, ok := rv.(error)
				if !ok {
					err = fmt.Errorf("%v", rv)
				}
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				logger.ErrorWith().Ctx(ctx).Request().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Float64("duration", d.Seconds()).
					Err(err).
					Str("panic_type", fmt.Sprintf("%T", rv)).
					Str("traceback", string(debug.Stack())).
					Msg("Request failed")
				panic(rv)
			}()

			next.ServeHTTP(rec, r)
			rec.commit()
			d := time.Since(start)

			span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}

			logger.InfoWith().Ctx(ctx).Request().
				Bool("response", true).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status_code", rec.status).
				Float64("duration", d.Seconds()).
				Str("content_type", rec.Header().Get("Content-Type")).
				Int64("content_length", rec.written).
				Str("cache_control", rec.Header().Get("Cache-Control")).
				Str("server_timing", fmt.Sprintf("total;dur=%.2f", millis(d))).
				Msg("Request completed")

			if opts.SlowThreshold > 0 && d > opts.SlowThreshold {
				logger.WarnWith().Ctx(ctx).
					Bool("performance", true).
					Bool("slow_request", true).
					Str("path", r.URL.Path).
					Float64("duration", d.Seconds()).
					Str("threshold_exceeded", opts.SlowThreshold.String()).
					Msg("Slow request detected")
			}
		})
	}
}

func newRequestID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func requestURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// captureBody returns up to limit bytes of a POST, PUT or PATCH body and
// puts them back in front of the unread remainder. A body that looks like
// it carries a credential is never returned.
func captureBody(r *http.Request, limit int) string {
	if r.Body == nil || r.Body == http.NoBody || limit <= 0 {
		return ""
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ""
	}

	head, err := io.ReadAll(io.LimitReader(r.Body, int64(limit)))
	r.Body = readCloser{
		Reader: io.MultiReader(bytes.NewReader(head), r.Body),
		Closer: r.Body,
	}
	if err != nil || len(head) == 0 {
		return ""
	}
	if carriesCredential(head) {
		return ""
	}
	return strings.ToValidUTF8(string(head), "")
}

func carriesCredential(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, m := range credentialMarkers {
		if bytes.Contains(lower, m) {
			return true
		}
	}
	return false
}

type readCloser struct {
	io.Reader
	io.Closer
}

func sanitizeHeaders(h http.Header, sensitive map[string]struct{}) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if _, hide := sensitive[strings.ToLower(k)]; hide {
			out[k] = redacted
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func flatten(v map[string][]string) map[string]string {
	out := make(map[string]string, len(v))
	for k, vals := range v {
		out[k] = strings.Join(vals, ",")
	}
	return out
}

func clientIP(r *http.Request) string {
	for _, h := range clientIPHeaders {
		raw := r.Header.Get(h)
		if raw == "" {
			continue
		}
		first, _, _ := strings.Cut(raw, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if r.RemoteAddr == "" {
		return unknownClient
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// recorder captures the status and size of a response and stamps the
// response time header just before the header is sent.
type recorder struct {
	http.ResponseWriter
	start      time.Time
	timeHeader string

	status      int
	written     int64
	wroteHeader bool
}

func (rw *recorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.status = code
	rw.Header().Set(rw.timeHeader, fmt.Sprintf("%.2fms", millis(time.Since(rw.start))))
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(p []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(p)
	rw.written += int64(n)
	return n, err
}

func (rw *recorder) Flush() {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *recorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// commit sends the header for handlers that wrote nothing.
func (rw *recorder) commit() {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
}
