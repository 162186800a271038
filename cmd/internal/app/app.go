// Package app wires the Apollo directory server runtime: config, logging,
// storage, and the token HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"apollo/cmd/accounts"
	"apollo/cmd/internal/oauth"
	"apollo/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory registry mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the Apollo server runtime: it owns the HTTP server wiring and the
// account registry lifecycle.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	svc    *accounts.Service
	tokens *oauth.Handler
	prom   *prometheus.Registry
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	st, registry, dbPool, dbEnabled, err := newRegistry(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	acctCfg, err := accounts.LoadConfigFromEnv()
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	svc := accounts.NewService(acctCfg, registry, pwCfg)

	if err := seedBootstrapAccount(context.Background(), cfg, log, svc); err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}

	prom := prometheus.NewRegistry()
	prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tokens := oauth.NewHandler(log, oauth.LoadConfigFromEnv(), svc, oauth.NewMetrics(prom))

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		svc:       svc,
		tokens:    tokens,
		prom:      prom,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.tokens, a.prom)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
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

// newRegistry decides between Postgres-backed persistence and the in-memory
// dev registry.
func newRegistry(ctx context.Context, cfg Config, log Logger) (Store, accounts.Registry, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_registry")
		return nopStore{}, accounts.NewMemoryRegistry(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, false, err
	}

	registry, err := accounts.NewPostgresRegistry(pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}

	log.Info("db.enabled.postgres_registry")
	return dbStore{pool: pool}, registry, pool, true, nil
}

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// seedBootstrapAccount registers the dev account named by environment, if
// any. Seeding an already-registered username is a no-op, so restarts are
// safe.
func seedBootstrapAccount(ctx context.Context, cfg Config, log Logger, svc *accounts.Service) error {
	if cfg.BootstrapUsername == "" || cfg.BootstrapPassword == "" {
		return nil
	}

	acct, err := svc.CreateAccount(ctx, cfg.BootstrapUsername, cfg.BootstrapPassword, time.Now().UTC())
	switch {
	case accounts.IsConflict(err):
		log.Info("bootstrap.account.exists", "username", accounts.NormalizeUsername(cfg.BootstrapUsername))
		return nil
	case err != nil:
		return fmt.Errorf("seed bootstrap account: %w", err)
	}

	log.Info("bootstrap.account.created", "account_id", acct.ID)
	return nil
}
