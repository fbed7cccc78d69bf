package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Middleware authenticates plain HTTP requests and enforces the route policy
// before any handler runs.
//
// Behavior at the boundary:
//   - A request carrying a token must carry a valid one: invalid or expired
//     tokens are rejected everywhere, even on public routes.
//   - A request carrying no token reaches public routes; the policy rejects
//     it elsewhere with Unauthenticated.
func Middleware(log *slog.Logger, authn *Authenticator, policy *Policy) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var principal *Principal

			p, err := authn.Authenticate(ctx, r, HeaderToken)
			switch {
			case err == nil:
				principal = &p
				ctx = WithPrincipal(ctx, p)
				r = r.WithContext(ctx)

			case errors.Is(err, ErrNoToken):
				// Anonymous request; the policy decides below.

			case errors.Is(err, ErrInvalidToken):
				writeDenied(w, http.StatusUnauthorized, "invalid_token", "invalid or expired session token")
				return

			case errors.Is(err, ErrUserNotFound):
				writeDenied(w, http.StatusUnauthorized, "user_not_found", "session user no longer exists")
				return

			default:
				log.Error("auth.authenticate.fail", "err", err)
				writeDenied(w, http.StatusInternalServerError, "internal", "authentication unavailable")
				return
			}

			// Route-level policy. Resource-level membership is re-checked by
			// mutating handlers at the moment of the action.
			if err := policy.Authorize(principal, r.Method, r.URL.Path, nil); err != nil {
				switch {
				case errors.Is(err, ErrUnauthenticated):
					writeDenied(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				case errors.Is(err, ErrForbidden):
					writeDenied(w, http.StatusForbidden, "forbidden", "insufficient role")
				default:
					log.Error("auth.authorize.fail", "err", err)
					writeDenied(w, http.StatusInternalServerError, "internal", "authorization unavailable")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}
