package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// readinessCheck pings one backend.
type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

type routerDeps struct {
	log        *zap.Logger
	cfg        Config
	dbEnabled  bool
	readiness  []readinessCheck
	registry   *prometheus.Registry
	authRoutes http.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID)
	r.Use(func(next http.Handler) http.Handler { return WithRequestLogging(next, d.log) })
	r.Use(middleware.Recoverer)
	if d.registry != nil {
		m := newHTTPMetrics(d.registry)
		r.Use(func(next http.Handler) http.Handler { return WithMetrics(next, m) })
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.cfg.ReadinessRequireDB && !d.dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		for _, rc := range d.readiness {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := rc.check(ctx)
			cancel()
			if err != nil {
				http.Error(w, rc.name+" not ready", http.StatusServiceUnavailable)
				d.log.Info("readyz.not_ready", zap.String("backend", rc.name), zap.Error(err))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if d.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))
	}

	if d.authRoutes != nil {
		r.Mount("/auth", d.authRoutes)
	}
	return r
}
