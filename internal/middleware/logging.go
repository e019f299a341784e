package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tallyvox/tallyvox/internal/model"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// requestIdentity is filled in by Authenticate so the access log, which
// wraps it, can report who made the request.
type requestIdentity struct {
	userID   string
	tenantID string
}

const requestIdentityKey contextKey = "request_identity"

// recordIdentity stores the resolved user on the access-log record.
func recordIdentity(ctx context.Context, user *model.AuthenticatedUser) {
	if id, ok := ctx.Value(requestIdentityKey).(*requestIdentity); ok && user != nil {
		id.userID = user.ID
		id.tenantID = user.Tenant()
	}
}

// Logger returns a middleware that writes one structured access log line
// per request. Credentials and bodies are never logged.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			identity := &requestIdentity{}
			ctx := context.WithValue(r.Context(), requestIdentityKey, identity)
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", wrapped.status),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			if action := r.URL.Query().Get("action"); action != "" {
				attrs = append(attrs, slog.String("action", action))
			}
			if identity.userID != "" {
				attrs = append(attrs, slog.String("user_id", identity.userID))
			}
			if identity.tenantID != "" {
				attrs = append(attrs, slog.String("tenant_id", identity.tenantID))
			}
			if traceID := GetTraceID(r.Context()); traceID != "" {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}

			level := slog.LevelInfo
			if wrapped.status >= 500 {
				level = slog.LevelError
			} else if wrapped.status >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http request", attrs...)
		})
	}
}
