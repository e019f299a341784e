package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tallyvox/tallyvox/internal/auth"
	"github.com/tallyvox/tallyvox/internal/model"
	"github.com/tallyvox/tallyvox/internal/response"
)

// UserResolver turns an Authorization header into an authenticated user.
type UserResolver interface {
	Resolve(ctx context.Context, authorization string) (*model.AuthenticatedUser, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver UserResolver
}

// Authenticate returns a middleware that resolves the bearer credential and
// injects the authenticated user into the request context.
// Every failure is answered with the same 401 envelope.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			user, err := cfg.Resolver.Resolve(r.Context(), header)
			if err != nil {
				kind, detail := authFailureReason(err)
				attrs := []any{
					slog.String("reason", kind),
					slog.String("detail", detail),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				}
				if token, ok := auth.ExtractBearer(header); ok {
					attrs = append(attrs, slog.String("token_fingerprint", auth.Fingerprint(token)))
				}
				cfg.Logger.Warn("authentication failed", attrs...)
				response.WriteError(w, http.StatusUnauthorized, response.MsgUnauthorized)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("user_id", user.ID),
				slog.String("tenant_id", user.Tenant()),
				slog.String("source", string(user.Source)),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			recordIdentity(r.Context(), user)
			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authFailureReason returns the AuthError kind and reason for logging.
func authFailureReason(err error) (string, string) {
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		return string(authErr.Kind), authErr.Reason
	}
	return string(auth.Unauthorized), ""
}
