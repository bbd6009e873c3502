// Linguapolis - language learning sim server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/linguapolis/internal/api"
	"github.com/ashureev/linguapolis/internal/catalog"
	"github.com/ashureev/linguapolis/internal/config"
	"github.com/ashureev/linguapolis/internal/game"
	"github.com/ashureev/linguapolis/internal/identity"
	"github.com/ashureev/linguapolis/internal/live"
	"github.com/ashureev/linguapolis/internal/media"
	"github.com/ashureev/linguapolis/internal/middleware"
	"github.com/ashureev/linguapolis/internal/progression"
	"github.com/ashureev/linguapolis/internal/savegame"
	"github.com/ashureev/linguapolis/internal/store"
	"github.com/ashureev/linguapolis/internal/sweeper"
	"github.com/ashureev/linguapolis/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

const catalogLoadTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), catalogLoadTimeout)
	cat, err := catalog.Load(loadCtx, http.DefaultClient, cfg.CatalogSource)
	cancelLoad()
	if err != nil {
		slog.Error("Failed to load catalog", "source", cfg.CatalogSource, "error", err)
		os.Exit(1)
	}
	slog.Info("Catalog loaded", "characters", len(cat.Characters()), "quests", len(cat.Quests()))

	var prober media.Prober
	if cfg.Media.AssetBaseURL != "" {
		prober = media.NewHTTPProber(cfg.Media.AssetBaseURL, cfg.Media.ProbeTimeout, logger)
	} else {
		prober = media.FSProber{FS: os.DirFS(cfg.Media.AssetDir)}
	}
	resolver := media.NewResolver(prober, media.Options{
		ImageFolders: cfg.Media.ImageFolders,
		VideoFolders: cfg.Media.VideoFolders,
		Playable:     cfg.Media.Playable,
		URLPrefix:    cfg.AssetURLPrefix(),
	}, logger)

	// Initialize services.
	engine := progression.NewEngine(progression.Curve{
		Base:      cfg.Progression.XPBase,
		Increment: cfg.Progression.XPStep,
	}, cfg.Progression.DefaultXP)
	saves := savegame.New(repo, cfg.Progression.StateKey, logger)
	hub := live.NewHub()
	svc := game.NewService(cat, engine, saves, hub, logger)

	// Initialize handlers.
	gameHandler := api.NewGameHandler(svc, resolver, saves.Key())
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := live.NewHandler(hub, svc, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Static assets skip the identity lookup.
	if cfg.Media.AssetDir != "" {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(cfg.Media.AssetDir))))
	}

	// Per-device routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		gameHandler.RegisterRoutes(r)
		r.Get("/ws/state", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WriteTimeout stays 0 for the websocket feed.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx, repo, cfg.SweepInterval, cfg.ProfileTTL, func(userID string) {
		hub.CloseUser(userID)
		svc.Forget(userID)
	})

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
