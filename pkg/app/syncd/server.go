// Package syncd implements app.Runner for the on-device sync daemon: it opens
// the local store, drives the orchestrator from the trigger daemon, and serves
// a local control API.
package syncd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/http"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/auth"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/gateway"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/migrations/localdb"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/orchestrator"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/resolver"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/sqliteutil"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/trigger"
)

// full syncs can take much longer than a plain request
const defaultRequestTimeout = 5 * time.Minute

// Server holds configuration for the sync daemon process.
type Server struct {
	cfg *config.SyncdConfig
}

// NewServer initializes a new sync daemon Server.
func NewServer(cfg *config.SyncdConfig) *Server {
	return &Server{cfg: cfg}
}

// Run opens the local store, starts the trigger daemon and serves the control
// API. It blocks until an OS shutdown signal is received or the server fails.
func (s *Server) Run() error {
	if s.cfg == nil {
		return errors.New("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting sync daemon",
		zap.String("tenant_id", cfg.Remote.TenantID),
		zap.String("remote", cfg.Remote.BaseURL),
		zap.String("store", cfg.Store.Path))

	db, err := sqliteutil.Open(ctx, &cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	group, err := localdb.Apply(ctx, db)
	if err != nil {
		return err
	}
	if !group.IsZero() {
		logger.Info("Local store migrated", zap.String("group", group.String()))
	}

	tokens := s.tokenSource()
	gw, err := gateway.New(&cfg.Remote, tokens, gateway.WithLogger(logger))
	if err != nil {
		return err
	}

	res, err := resolver.NewFromConfig(&cfg.Sync)
	if err != nil {
		return err
	}

	store := localstore.NewStore(db)
	prober := trigger.NewProber(gw, cfg.Trigger.ProbeInterval, logger)
	orch := orchestrator.New(store, gw, res, logger,
		orchestrator.WithTenant(cfg.Remote.TenantID),
		orchestrator.WithMaxRetries(cfg.Sync.MaxRetries),
		orchestrator.WithTokenSource(tokens),
		orchestrator.WithConnectivity(prober.Online),
		orchestrator.WithAutoSyncDefault(cfg.Sync.AutoSync),
	)

	daemon := trigger.NewDaemon(orch, prober, &cfg.Trigger, logger)
	daemon.Start(ctx)

	// the status stream and long syncs outlive a write deadline; requests are
	// bounded by middleware.Timeout instead
	serverCfg := cfg.Server
	serverCfg.WriteTimeout = 0

	router := s.newRouter(orch, store, daemon, logger)
	err = apphttp.ServeAndWait(ctx, router, logger, &serverCfg)

	// stop triggering before the store closes
	daemon.Stop()
	orch.Wait()

	return err
}

func (s *Server) tokenSource() auth.TokenSource {
	if s.cfg.Auth.Token != "" {
		return auth.StaticToken(s.cfg.Auth.Token)
	}
	return auth.NewClientCredentials(
		s.cfg.Auth.TokenURL,
		s.cfg.Auth.ClientID,
		s.cfg.Auth.ClientSecret,
		&http.Client{Timeout: s.cfg.Remote.RequestTimeout},
	)
}

func (s *Server) newRouter(ctl Controller, records RecordReader, trig Triggerer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apphttp.RequestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if s.cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// long-lived, so outside the request timeout
	r.Handle("/status/stream", &streamer{ctl: ctl, logger: logger})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(defaultRequestTimeout))
		registerControlRoutes(r, ctl, records, trig, logger)
	})

	return r
}
