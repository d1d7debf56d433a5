package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ftsi/facsite/internal/auth"
)

// CookieName is the session cookie.
const CookieName = "facsite_session"

// SessionLoader resolves the session cookie into a request principal. The
// request always proceeds; access decisions belong to the gates further down
// the chain. A cookie pointing at an absent or expired session is treated as
// anonymous.
func SessionLoader(authSvc auth.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, session, err := authSvc.CurrentUser(r.Context(), cookie.Value)
			if err != nil {
				logger.ErrorContext(r.Context(), "session lookup failed, treating request as anonymous",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), &Principal{User: user, Session: session})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
