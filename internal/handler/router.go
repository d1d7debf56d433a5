package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ftsi/facsite/internal/auth"
	"github.com/ftsi/facsite/internal/config"
	"github.com/ftsi/facsite/internal/enseignant"
	"github.com/ftsi/facsite/internal/horaire"
	"github.com/ftsi/facsite/internal/metrics"
	"github.com/ftsi/facsite/internal/middleware"
	"github.com/ftsi/facsite/internal/photo"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Config            *config.Config
	Logger            *slog.Logger
	DB                *sql.DB
	AuthService       auth.Service
	Resolver          *auth.Resolver
	EnseignantService enseignant.Service
	PhotoService      photo.Service
	HoraireService    horaire.Service
	Collector         *metrics.Collector
}

// NewRouter builds the HTTP routing tree.
//
// Layout:
//   - GET  /health, /metrics            operational endpoints
//   - GET  /files/{bucket}/{object}     public object storage
//   - GET  /api/...                     public read API
//   - /auth/...                         registration and session endpoints
//   - GET  /admin                       admin page, behind the page gate
//   - /admin/api/...                    admin mutations, behind the JSON gate
func NewRouter(deps RouterDeps) http.Handler {
	cfg := deps.Config

	authHandler := NewAuthHandler(deps.AuthService, deps.Resolver, deps.Collector, CookieSettings{
		MaxAge: cfg.SessionMaxAge,
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	}, deps.Logger)
	enseignantHandler := NewEnseignantHandler(deps.EnseignantService, deps.Collector, cfg.UploadMaxBytes, deps.Logger)
	photoHandler := NewPhotoHandler(deps.PhotoService, deps.Collector, cfg.UploadMaxBytes, deps.Logger)
	horaireHandler := NewHoraireHandler(deps.HoraireService, deps.Collector, cfg.UploadMaxBytes, deps.Logger)

	generalLimiter := middleware.NewRateLimiter(cfg.RateLimitGeneral)
	loginLimiter := middleware.NewRateLimiter(cfg.RateLimitLogin)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigin))
	r.Use(middleware.SessionLoader(deps.AuthService, deps.Logger))
	r.Use(middleware.Logging(deps.Logger, deps.Collector))

	r.Get("/health", healthHandler(deps.DB))
	r.Method(http.MethodGet, "/metrics", deps.Collector.Handler())

	// Uploaded objects are public by URL.
	fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.StorageDir)))
	r.Get("/files/*", func(w http.ResponseWriter, req *http.Request) {
		fileServer.ServeHTTP(w, req)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(generalLimiter.Middleware)
		r.Get("/enseignants", enseignantHandler.List)
		r.Get("/photos", photoHandler.List)
		r.Get("/horaires", horaireHandler.List)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/", authPage)
		r.Get("/me", authHandler.Me)
		r.With(loginLimiter.Middleware).Post("/signup", authHandler.SignUp)
		r.With(loginLimiter.Middleware).Post("/signin", authHandler.SignIn)
		r.Post("/signout", authHandler.SignOut)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminPageGate(deps.Resolver))
		r.Get("/admin", adminPage)
		r.Get("/admin/enseignants", adminPage)
		r.Get("/admin/photos", adminPage)
		r.Get("/admin/horaires", adminPage)
	})

	r.Route("/admin/api", func(r chi.Router) {
		r.Use(generalLimiter.Middleware)
		r.Use(middleware.RequireAdmin(deps.Resolver))

		r.Post("/enseignants", enseignantHandler.Create)
		r.Put("/enseignants/{id}", enseignantHandler.Update)
		r.Delete("/enseignants/{id}", enseignantHandler.Delete)

		r.Post("/photos", photoHandler.Create)
		r.Put("/photos/{id}", photoHandler.Update)
		r.Delete("/photos/{id}", photoHandler.Delete)

		r.Post("/horaires", horaireHandler.Create)
		r.Put("/horaires/{id}", horaireHandler.Update)
		r.Delete("/horaires/{id}", horaireHandler.Delete)
	})

	return r
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// authPage is the sign-in page the admin gate redirects to. The actual form
// lives in the front end; this answer keeps the route resolvable when the
// API runs alone.
func authPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<!doctype html><html lang=\"fr\"><head><title>Connexion</title></head><body><h1>Connexion</h1></body></html>"))
}

func adminPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<!doctype html><html lang=\"fr\"><head><title>Administration</title></head><body><h1>Espace d'administration</h1></body></html>"))
}
