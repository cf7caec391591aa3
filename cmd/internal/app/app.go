// Package app wires the passage server runtime: config, logging, backends,
// the session service, and HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"passage/cmd/identity"
	authapi "passage/cmd/internal/auth/api"
	"passage/cmd/internal/auth/session"
	"passage/cmd/internal/geo"
	"passage/cmd/security/password"
)

// App owns the HTTP server, the session sweeper, and every backend client.
type App struct {
	cfg Config
	log *zap.Logger

	server   *http.Server
	handler  http.Handler
	sessions *session.Service

	closers []closer
}

type closer struct {
	name  string
	close func(ctx context.Context) error
}

// New constructs a fully wired App. Backends that are not configured fall
// back to in-memory implementations.
func New(ctx context.Context, cfg Config, log *zap.Logger) (_ *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	apiCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(sessCfg, apiCfg); err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	geoCfg, err := geo.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	var readiness []readinessCheck

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		if cfg.DBMigrate {
			if err := RunMigrations(cfg.DatabaseURL, log); err != nil {
				return nil, err
			}
		}
		if pool, err = NewDBPool(ctx, cfg); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.onClose("postgres", func(context.Context) error { pool.Close(); return nil })
		readiness = append(readiness, readinessCheck{name: "postgres", check: func(ctx context.Context) error {
			return PingDB(ctx, pool, 2*time.Second)
		}})
		log.Info("db.enabled.postgres")
	} else {
		log.Info("db.disabled.inmemory_store")
	}

	users, err := newUserStore(pool)
	if err != nil {
		return nil, err
	}

	store, storeReady, err := a.newSessionStore(ctx, pool)
	if err != nil {
		return nil, err
	}
	if storeReady != nil {
		readiness = append(readiness, *storeReady)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		if rdb, err = NewRedisClient(ctx, cfg); err != nil {
			return nil, err
		}
		a.onClose("redis", func(context.Context) error { return rdb.Close() })
		readiness = append(readiness, readinessCheck{name: "redis", check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	var limiter authapi.Limiter = authapi.NoopLimiter{}
	if rdb != nil {
		if limiter, err = authapi.NewRedisLimiter(rdb, apiCfg.LoginWindow); err != nil {
			return nil, err
		}
	}

	var resolver geo.Resolver = geo.Noop{}
	if geoCfg.Enabled {
		resolver = geo.NewIPAPIClient(geoCfg, nil)
		if rdb != nil {
			resolver = geo.NewCachedResolver(resolver, rdb, geoCfg.CacheTTL, log.Named("geo"))
		}
	}

	var registry *prometheus.Registry
	var metrics *session.Metrics
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = session.NewMetrics(registry)
	}

	a.sessions, err = session.NewService(sessCfg, session.Deps{
		Store:     store,
		Users:     users,
		Passwords: pwCfg,
		Geo:       resolver,
		Metrics:   metrics,
		Logger:    log.Named("session"),
	})
	if err != nil {
		return nil, err
	}

	if err := bootstrapAdmin(ctx, cfg, users, pwCfg, log); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	auth, err := authapi.NewHandler(log.Named("auth"), apiCfg, a.sessions, authapi.WithLimiter(limiter))
	if err != nil {
		return nil, err
	}

	a.handler = newRouter(routerDeps{
		log:        log,
		cfg:        cfg,
		dbEnabled:  pool != nil,
		readiness:  readiness,
		registry:   registry,
		authRoutes: auth.Routes(),
	})
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(cfg.MaxHeaderBytes, 1<<20),
	}

	log.Info("app.ready",
		zap.String("session_store", cfg.sessionBackend()),
		zap.Bool("redis", rdb != nil),
		zap.Bool("geo", geoCfg.Enabled),
		zap.Bool("metrics", registry != nil),
	)
	return a, nil
}

// Handler exposes the root router, mainly for tests.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP and runs the expiry sweeper until ctx is cancelled or the
// server fails, then shuts down and releases backends.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server.start", zap.String("addr", a.cfg.HTTPAddr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", zap.String("reason", "context_done"))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.sessions.RunSweeper(gctx, 0)
	})

	err := g.Wait()
	if err != nil {
		a.log.Error("server.fail", zap.Error(err))
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.close(closeCtx)

	a.log.Info("server.stopped")
	return err
}

func (a *App) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// close releases backends in reverse order of acquisition.
func (a *App) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(ctx); err != nil {
			a.log.Error("backend.close.fail", zap.String("backend", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

func newUserStore(pool *pgxpool.Pool) (identity.Store, error) {
	if pool == nil {
		return identity.NewMemoryStore(), nil
	}
	return identity.NewPostgresStore(pool)
}

func (a *App) newSessionStore(ctx context.Context, pool *pgxpool.Pool) (session.Store, *readinessCheck, error) {
	switch backend := a.cfg.sessionBackend(); backend {
	case "memory":
		a.log.Warn("session.store.memory", zap.String("note", "sessions are lost on restart"))
		return session.NewMemoryStore(), nil, nil

	case "postgres":
		if pool == nil {
			return nil, nil, errors.New("session store postgres requires PASSAGE_DATABASE_URL")
		}
		st, err := session.NewPostgresStore(pool, "")
		return st, nil, err

	case "mongo":
		client, err := NewMongoClient(ctx, a.cfg)
		if err != nil {
			return nil, nil, err
		}
		a.onClose("mongo", client.Disconnect)

		st, err := session.NewMongoStore(client, a.cfg.MongoDatabase, "")
		if err != nil {
			return nil, nil, err
		}
		if err := st.EnsureIndexes(ctx); err != nil {
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return st, &readinessCheck{name: "mongo", check: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}}, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", backend)
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
