// Secretlab - secrets management training server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/secretlab/internal/api"
	"github.com/ashureev/secretlab/internal/catalog"
	"github.com/ashureev/secretlab/internal/config"
	"github.com/ashureev/secretlab/internal/ctf"
	"github.com/ashureev/secretlab/internal/domain"
	"github.com/ashureev/secretlab/internal/environment"
	"github.com/ashureev/secretlab/internal/middleware"
	"github.com/ashureev/secretlab/internal/progress"
	"github.com/ashureev/secretlab/internal/scoring"
	"github.com/ashureev/secretlab/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "store", cfg.StoreDriver, "ctf", cfg.CTF.Enabled)

	// Detect the runtime before building challenges; it decides which are enabled.
	runtime := environment.Detect(cfg.Environment, environment.DefaultProbes(cfg.VaultAddr))
	slog.Info("Runtime environment", "kind", runtime.Kind())

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load challenge catalog", "error", err)
		os.Exit(1)
	}
	challenges, err := cat.Build(catalog.BuildOptions{Runtime: runtime})
	if err != nil {
		slog.Error("Failed to build challenges", "error", err)
		os.Exit(1)
	}

	// Initialize dependencies.
	repo, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize scorecard store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.Timeout.HealthCheck)
	err = repo.Ping(pingCtx)
	pingCancel()
	if err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected", "driver", cfg.StoreDriver)

	plain := make([]*domain.Challenge, 0, len(challenges))
	for _, ui := range challenges {
		plain = append(plain, ui.Challenge)
	}
	scores, err := scoring.New(context.Background(), repo, plain)
	if err != nil {
		slog.Error("Failed to load scorecard", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services.
	hub := progress.NewHub()
	scores.OnChange(hub.Publish)
	go hub.Run(ctx)

	solver := ctf.NewSolver(scores, solverOptions(cfg))

	// Initialize handlers.
	serverAddress := ""
	if cfg.CTF.CTFServerConfigured() {
		serverAddress = cfg.CTF.ServerAddress
	}
	challengeHandler := api.NewChallengeHandler(api.Settings{
		HintsEnabled:     cfg.Challenges.HintsEnabled,
		ReasonEnabled:    cfg.Challenges.ReasonEnabled,
		SpoilingEnabled:  cfg.Challenges.SpoilingEnabled,
		CTFEnabled:       cfg.CTF.Enabled,
		CTFServerAddress: serverAddress,
	}, challenges, scores, runtime, solver)
	healthHandler := api.NewHealthHandler(repo, cfg.Timeout.HealthCheck, solver.Mode().String(), string(runtime.Kind()))
	wsHandler := progress.NewWebSocketHandler(hub, scores, cfg.AllowedOrigins)
	limiter := middleware.NewSubmitLimiter(cfg.RateLimit.SubmitsPerSecond, cfg.RateLimit.Burst)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	healthHandler.RegisterHealth(r)

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		challengeHandler.RegisterRoutes(r)
	})

	// WebSocket endpoint.
	r.Get("/ws/progress", wsHandler.ServeHTTP)

	// Note: websocket connections require no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// openStore returns the scorecard repository selected by STORE_DRIVER.
func openStore(cfg *config.Config) (store.Repository, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		slog.Warn("Using in-memory scorecard, progress is lost on restart")
		return store.NewMemory(), nil
	case config.StoreSQLite:
		return store.NewSQLite(cfg.DBPath)
	case config.StoreRedis:
		return store.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func solverOptions(cfg *config.Config) ctf.Options {
	opts := ctf.Options{
		Mode:          ctf.ModePlain,
		RemoteTimeout: cfg.CTF.ServerTimeout,
	}
	if !cfg.CTF.Enabled {
		return opts
	}

	opts.Mode = ctf.ModeCTF
	opts.Deriver = ctf.HMACDeriver{Key: cfg.CTF.Key}
	if cfg.CTF.HostValueConfigured() {
		opts.HostValue = cfg.CTF.HostValue
	}
	if cfg.CTF.CTFServerConfigured() {
		opts.ServerAddress = cfg.CTF.ServerAddress
		opts.Remote = ctf.NewHTTPProbe(cfg.CTF.ServerAddress, cfg.CTF.ServerTimeout)
	}
	return opts
}
