package middleware

import (
	"net/http"

	"github.com/ftsi/facsite/internal/auth"
	"github.com/ftsi/facsite/internal/model"
)

// AdminPageGate protects the admin pages.
//
// Decisions follow the resolved auth state, never a guess:
//   - anonymous callers and resolved non-administrators are redirected to
//     /auth with 303 See Other and Cache-Control: no-store, so the browser
//     replaces the page instead of caching a protected URL
//   - while the role is still resolving the gate answers 503 with
//     Retry-After; it never redirects a caller whose role is unknown
//   - resolved administrators pass through
func AdminPageGate(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				redirectToAuth(w, r)
				return
			}

			if !resolver.Known(p.Session.ID) {
				resolver.SessionStarted(
					auth.SessionRef{ID: p.Session.ID, ExpiresAt: p.Session.ExpiresAt},
					auth.UserRef{ID: p.User.ID, Email: p.User.Email},
				)
				resolving(w)
				return
			}

			state := resolver.State(p.Session.ID)
			if state.Loading {
				resolving(w)
				return
			}
			if !state.IsAdmin {
				redirectToAuth(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin protects the admin API. Unlike the page gate it answers in
// JSON: 401 for anonymous callers, 403 for resolved non-administrators, 503
// while the role is still resolving.
func RequireAdmin(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if !resolver.Known(p.Session.ID) {
				resolver.SessionStarted(
					auth.SessionRef{ID: p.Session.ID, ExpiresAt: p.Session.ExpiresAt},
					auth.UserRef{ID: p.User.ID, Email: p.User.Email},
				)
				resolvingJSON(w)
				return
			}

			state := resolver.State(p.Session.ID)
			if state.Loading {
				resolvingJSON(w)
				return
			}
			if !state.IsAdmin {
				writeError(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func redirectToAuth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, "/auth", http.StatusSeeOther)
}

func resolving(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Cache-Control", "no-store")
	http.Error(w, "Vérification de la session en cours, veuillez patienter.", http.StatusServiceUnavailable)
}

func resolvingJSON(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Cache-Control", "no-store")
	writeError(w, http.StatusServiceUnavailable, model.NewSessionResolvingError())
}
