// Package server assembles the HTTP service: storage, the watchlist, API
// handlers and the embedded dashboard.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/handsomefox/tv-discover/internal/config"
	"github.com/handsomefox/tv-discover/internal/handlers"
	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/session"
	"github.com/handsomefox/tv-discover/internal/store"
	"github.com/handsomefox/tv-discover/internal/tmdb"
	"github.com/handsomefox/tv-discover/internal/watchlist"
	"github.com/handsomefox/tv-discover/internal/web"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return Serve(ctx, cfg, log, ln)
}

// Serve is Run on an existing listener. The listener is closed on return.
func Serve(ctx context.Context, cfg config.Config, log *slog.Logger, ln net.Listener) error {
	defer ln.Close()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("Failed to close DB", logger.Error(err))
		}
	}()

	wl := watchlist.NewPersistent(st, log)

	app, err := handlers.New(ctx, &handlers.Config{
		Store:     st,
		Watchlist: wl,
		NewUpstream: func(credential string) handlers.Upstream {
			return tmdb.New(credential, tmdb.WithBaseURL(cfg.TMDBBaseURL))
		},
		SeedCredential: cfg.TMDBAPIKey,
		Env:            cfg.Env,
		ImageBase:      cfg.TMDBImageBase,
		Logger:         log,
		SessionOptions: []session.Option{
			session.WithDelays(cfg.SearchDebounce, cfg.FilterDebounce),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}
	defer app.Close()

	router, err := NewRouter(cfg, log, app)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", slog.String("addr", srv.Addr), slog.String("env", string(cfg.Env)))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return wl.Watch(gctx, cfg.WatchlistSyncInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		// Closing the handler ends open event streams so Shutdown can drain.
		app.Close()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// NewRouter mounts the API under /api and the dashboard everywhere else.
func NewRouter(cfg config.Config, log *slog.Logger, app *handlers.Handler) (http.Handler, error) {
	dist, err := web.Dist()
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}
	spa, err := handlers.SPA(dist)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if lvl, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		level = lvl
	}

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(log, &httplog.Options{
		Level:         level,
		Schema:        httplog.SchemaECS,
		RecoverPanics: true,
		Skip: func(req *http.Request, respStatus int) bool {
			return respStatus == http.StatusNotFound || respStatus == http.StatusMethodNotAllowed
		},
	}))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Route("/api", app.RegisterRoutes)
	r.Handle("/*", spa)
	return r, nil
}
