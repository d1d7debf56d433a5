package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ftsi/facsite/internal/auth"
	"github.com/ftsi/facsite/internal/metrics"
	"github.com/ftsi/facsite/internal/middleware"
	"github.com/ftsi/facsite/internal/model"
)

// CookieSettings controls the session cookie attributes.
type CookieSettings struct {
	MaxAge int // seconds
	Secure bool
	Domain string
}

// AuthHandler implements the /auth endpoints.
type AuthHandler struct {
	service   auth.Service
	resolver  *auth.Resolver
	collector *metrics.Collector
	cookies   CookieSettings
	logger    *slog.Logger
}

// NewAuthHandler creates the AuthHandler.
func NewAuthHandler(
	service auth.Service,
	resolver *auth.Resolver,
	collector *metrics.Collector,
	cookies CookieSettings,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		service:   service,
		resolver:  resolver,
		collector: collector,
		cookies:   cookies,
		logger:    logger,
	}
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nom      string `json:"nom"`
	Prenom   string `json:"prenom"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Nom: u.Nom, Prenom: u.Prenom}
}

// SignUp handles POST /auth/signup. A new account is created but not signed
// in; the client proceeds to the sign-in form.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("corps de requête illisible"))
		return
	}

	user, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.Nom, req.Prenom)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":    toUserResponse(user),
		"message": "Compte créé. Vous pouvez maintenant vous connecter.",
	})
}

// SignIn handles POST /auth/signin. On success the session cookie is set and
// the session is submitted for role resolution.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("corps de requête illisible"))
		return
	}

	session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.collector.RecordSignIn("failure")
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.collector.RecordSignIn("success")

	user, _, err := h.service.CurrentUser(r.Context(), session.ID)
	if err != nil || user == nil {
		handleServiceError(w, r, h.logger, model.NewInternalError())
		return
	}

	h.resolver.SessionStarted(
		auth.SessionRef{ID: session.ID, ExpiresAt: session.ExpiresAt},
		auth.UserRef{ID: user.ID, Email: user.Email},
	)

	http.SetCookie(w, h.sessionCookie(session.ID, h.cookies.MaxAge))
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

// SignOut handles POST /auth/signout. It is idempotent: a missing or stale
// cookie still answers 204 with the cookie cleared.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.CookieName); err == nil && cookie.Value != "" {
		_ = h.service.SignOut(r.Context(), cookie.Value)
		h.resolver.SessionEnded(cookie.Value)
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

type authStateResponse struct {
	Authenticated bool          `json:"authenticated"`
	Loading       bool          `json:"loading"`
	IsAdmin       bool          `json:"is_admin"`
	User          *userResponse `json:"user,omitempty"`
}

// Me handles GET /auth/me and reports the caller's resolved auth state.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeJSON(w, http.StatusOK, authStateResponse{})
		return
	}

	if !h.resolver.Known(p.Session.ID) {
		h.resolver.SessionStarted(
			auth.SessionRef{ID: p.Session.ID, ExpiresAt: p.Session.ExpiresAt},
			auth.UserRef{ID: p.User.ID, Email: p.User.Email},
		)
	}
	state := h.resolver.State(p.Session.ID)

	user := toUserResponse(p.User)
	writeJSON(w, http.StatusOK, authStateResponse{
		Authenticated: true,
		Loading:       state.Loading || !h.resolver.Known(p.Session.ID),
		IsAdmin:       state.IsAdmin,
		User:          &user,
	})
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
