package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/api/handlers"
	"github.com/mb4540/gift-of-time-edu-rag/internal/api/middlewares"
)

// Router assembles the HTTP surface: public auth and ops endpoints, then the
// authenticated, rate-limited API group.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogger(a.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", a.health)
	r.Handle("/metrics", promhttp.Handler())

	authH := handlers.NewAuthHandler(a.DB, a.Cfg, a.Log)
	docH := handlers.NewDocumentHandler(a.DB, a.Store, a.Pipeline, a.Workers, a.Log)
	queryH := handlers.NewQueryHandler(a.Engine, a.Log)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authH.Signup)
		r.Post("/auth/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(middlewares.Auth(a.Cfg.JWTSecret, a.Log))
			r.Use(middlewares.RateLimit(a.Limiter, a.Log))

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", docH.List)
				r.Post("/upload", docH.Upload)
				r.Post("/url", docH.RegisterURL)
				r.Post("/ingest", docH.Ingest)
				r.Get("/{docID}", docH.Get)
				r.Delete("/{docID}", docH.Delete)
			})
			r.Post("/query", queryH.Query)
		})
	})
	return r
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	w.Header().Set("Content-Type", "application/json")
	if err := a.DB.Ping(ctx); err != nil {
		a.Log.Warn("health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Serve runs the HTTP server until ctx ends, then shuts down gracefully.
// No write timeout is set because query streams are long-lived.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.Cfg.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.Workers.Start(ctx)
	defer a.Workers.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.Log.Info("server listening", zap.String("port", a.Cfg.Port))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
