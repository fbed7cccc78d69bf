// Package app wires the chatd runtime: config, logging, persistence,
// the session registry, the HTTP API, and the realtime gateway.
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

	"github.com/sennadevos/Chat-Application/internal/api"
	"github.com/sennadevos/Chat-Application/internal/auth"
	"github.com/sennadevos/Chat-Application/internal/chat"
	"github.com/sennadevos/Chat-Application/internal/identity"
	"github.com/sennadevos/Chat-Application/internal/ids"
	"github.com/sennadevos/Chat-Application/internal/membership"
	"github.com/sennadevos/Chat-Application/internal/realtime"
	"github.com/sennadevos/Chat-Application/internal/session"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// App is the chatd runtime: it owns server wiring and component lifecycles.
type App struct {
	cfg Config
	log Logger

	store     Store
	dbPool    *pgxpool.Pool
	dbEnabled bool

	registry *session.Registry
	members  *membership.Store
	hub      *realtime.Hub

	handler http.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	ctx := context.Background()

	st, pool, dbEnabled, users, channels, messages, err := newStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	registry := session.NewRegistry(cfg.SessionTTL)
	members := membership.NewStore()

	// The live membership view is rebuilt from the durable relation at every
	// startup; it is never persisted itself.
	if err := hydrateMembership(ctx, channels, members); err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("hydrate membership: %w", err)
	}

	if err := seedAdmin(ctx, cfg, log, users); err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := realtime.NewMetrics(promReg)

	hub := realtime.NewHub(log)
	dispatcher := realtime.NewDispatcher(log, members, hub, metrics)

	authn := auth.NewAuthenticator(log, registry, users)
	policy := auth.NewPolicy()
	ws := realtime.NewWSGateway(log, authn, hub, metrics)

	apiHandler := api.NewHandler(log, registry, users, channels, messages, members, dispatcher, Version)

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, pool, dbEnabled, promReg, ws, apiHandler)

	handler := WithRequestLogging(auth.Middleware(log, authn, policy)(mux), log)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    pool,
		dbEnabled: dbEnabled,
		registry:  registry,
		members:   members,
		hub:       hub,
		handler:   handler,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.registry.RunSweeper(sweepCtx, a.cfg.SessionSweepInterval)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled, "version", Version)

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

// newStores decides between Postgres-backed persistence and the in-memory
// dev stores.
func newStores(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, identity.Store, chat.ChannelStore, chat.MessageStore, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		mem := chat.NewMemoryStore()
		return nopStore{}, nil, false, identity.NewMemoryStore(), mem, mem, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, nil, nil, nil, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)

	// Ownership model: app owns the pool lifecycle, the stores do not.
	users, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, nil, nil, err
	}
	chatStore, err := chat.NewPostgresStore(pool, chat.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, nil, nil, err
	}

	return dbStore{pool: pool}, pool, true, users, chatStore, chatStore, nil
}

// hydrateMembership rebuilds the live membership store from the durable
// channel relation.
func hydrateMembership(ctx context.Context, channels chat.ChannelStore, members *membership.Store) error {
	chs, err := channels.ListChannels(ctx)
	if err != nil {
		return err
	}
	for _, c := range chs {
		members.Register(c.ID)
	}

	rels, err := channels.ListMemberships(ctx)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if err := members.AddMember(rel.ChannelID, rel.UserID); err != nil {
			return err
		}
	}
	return nil
}

// seedAdmin creates the bootstrap admin account when configured and absent.
func seedAdmin(ctx context.Context, cfg Config, log Logger, users identity.Store) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}

	if _, err := users.FindUserByUsername(ctx, cfg.AdminUsername); err == nil {
		return nil
	} else if !errors.Is(err, identity.ErrNotFound) {
		return err
	}

	hash, err := identity.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		return err
	}

	err = users.CreateUser(ctx, identity.User{
		ID:           id,
		Username:     cfg.AdminUsername,
		Role:         identity.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, identity.ErrUsernameTaken) {
		return err
	}

	log.Info("admin.seeded", "username", cfg.AdminUsername)
	return nil
}
