// Package app wires the application together and runs it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ftsi/facsite/internal/auth"
	"github.com/ftsi/facsite/internal/config"
	"github.com/ftsi/facsite/internal/database"
	"github.com/ftsi/facsite/internal/enseignant"
	"github.com/ftsi/facsite/internal/handler"
	"github.com/ftsi/facsite/internal/horaire"
	"github.com/ftsi/facsite/internal/logger"
	"github.com/ftsi/facsite/internal/metrics"
	"github.com/ftsi/facsite/internal/notify"
	"github.com/ftsi/facsite/internal/photo"
	"github.com/ftsi/facsite/internal/repository"
	"github.com/ftsi/facsite/internal/security"
	"github.com/ftsi/facsite/internal/storage"
	"github.com/ftsi/facsite/internal/worker"
)

// Init installs the structured logger and loads the configuration. writer
// receives the log output; production passes os.Stdout.
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run is the application entry point. args is os.Args[1:].
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck skips full initialization; it only needs the port.
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe starts the API server and the in-process sweeper. SIGINT or
// SIGTERM triggers a graceful shutdown.
func runServe(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	log := slog.Default()

	// Repositories
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	adminRepo := repository.NewPostgresAdminRepo(db)
	enseignantRepo := repository.NewPostgresEnseignantRepo(db)
	photoRepo := repository.NewPostgresPhotoRepo(db)
	horaireRepo := repository.NewPostgresHoraireRepo(db)
	objectRefs := repository.NewPostgresObjectRefs(db)

	// Object storage
	store, err := storage.NewDiskStore(cfg.StorageDir, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// Domain services
	collector := metrics.NewCollector()
	sanitizer := security.NewContentSanitizer()
	notifier := notify.NewLogNotifier(log)

	authService := auth.NewService(
		userRepo, sessionRepo, adminRepo,
		time.Duration(cfg.SessionMaxAge)*time.Second, log,
	)
	resolver := auth.NewResolver(authService, collector, log)

	enseignantService := enseignant.NewService(enseignantRepo, store, sanitizer, notifier, cfg.CacheSize, cfg.CacheTTL, log)
	photoService := photo.NewService(photoRepo, store, sanitizer, notifier, cfg.CacheSize, cfg.CacheTTL, log)
	horaireService := horaire.NewService(horaireRepo, store, notifier, cfg.CacheSize, cfg.CacheTTL, log)

	router := handler.NewRouter(handler.RouterDeps{
		Config:            cfg,
		Logger:            log,
		DB:                db,
		AuthService:       authService,
		Resolver:          resolver,
		EnseignantService: enseignantService,
		PhotoService:      photoService,
		HoraireService:    horaireService,
		Collector:         collector,
	})

	sweeper := worker.NewSweeper(
		sessionRepo, objectRefs, store, resolver, collector,
		cfg.SweepInterval, cfg.OrphanTTL, log,
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background goroutines stop when ctx is cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go resolver.Run(ctx)
	go sweeper.Run(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate applies all pending database migrations.
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck probes the local /health endpoint.
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL hides the credentials in a database URL before logging.
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
