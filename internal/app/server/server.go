package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"kpieval/internal/domain/auth"
	"kpieval/internal/domain/evaluation"
	"kpieval/internal/domain/notifications"
	"kpieval/internal/platform/config"
	"kpieval/internal/platform/db"
	"kpieval/internal/platform/metrics"
	"kpieval/internal/transport/http/api"
	authhandler "kpieval/internal/transport/http/handlers/auth"
	evaluationhandler "kpieval/internal/transport/http/handlers/evaluation"
	notificationshandler "kpieval/internal/transport/http/handlers/notifications"
	"kpieval/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *db.Pool
	Metrics *metrics.Collector
	Router  http.Handler
}

// Deps are the services the router serves. Ready backs /readyz.
type Deps struct {
	Auth          *auth.Service
	Evaluation    *evaluation.Service
	Notifications *notifications.Service
	Metrics       *metrics.Collector
	Ready         func(ctx context.Context) error
}

// New connects to the database, applies migrations and seed data as
// configured, and wires the HTTP router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	collector := metrics.New()
	evalStore := evaluation.NewStore(pool, cfg.TxRetryMaxElapsed)
	deps := Deps{
		Auth: auth.NewService(auth.NewStore(pool), cfg.JWTSecret, cfg.TokenTTL),
		Evaluation: evaluation.NewService(evalStore, notifications.NewDispatcher(collector),
			evaluation.WithRecorder(collector)),
		Notifications: notifications.New(notifications.NewStore(pool)),
		Metrics:       collector,
		Ready:         pool.Ping,
	}
	return &App{
		Config:  cfg,
		DB:      pool,
		Metrics: collector,
		Router:  NewRouter(cfg, deps),
	}, nil
}

func NewRouter(cfg config.Config, deps Deps) http.Handler {
	var recorder middleware.RequestRecorder
	if cfg.MetricsEnabled && deps.Metrics != nil {
		recorder = deps.Metrics
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(recorder))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				slog.Warn("readiness check failed", "err", err)
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled && deps.Metrics != nil {
		router.With(middleware.RequireAdmin).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, deps.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.WorkflowRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authHandler := authhandler.NewHandler(deps.Auth)
		authHandler.RegisterPublic(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
			authHandler.RegisterRoutes(r)
			evaluationhandler.NewHandler(deps.Evaluation).RegisterRoutes(r)
			notificationshandler.NewHandler(deps.Notifications).RegisterRoutes(r)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusNotFound, "not_found", "route not found", middleware.GetRequestID(r.Context()))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", middleware.GetRequestID(r.Context()))
	})
	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("kpieval server listening", "addr", a.Config.Addr, "env", a.Config.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// ConfigureLogging installs the process-wide slog handler.
func ConfigureLogging(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("service", "kpieval")
	slog.SetDefault(logger)
	return logger
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
