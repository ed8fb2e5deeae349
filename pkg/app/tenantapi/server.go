// Package tenantapi implements app.Runner for the reference tenant API server.
package tenantapi

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/pgutil"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantapi"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantapi/service"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantstore"
)

const defaultRequestTimeout = 60 * time.Second

// Server holds cfg to init the tenant API server.
type Server struct {
	cfg *config.TenantAPIConfig
}

// NewServer initializes a new tenant API server.
func NewServer(cfg *config.TenantAPIConfig) *Server {
	return &Server{cfg: cfg}
}

// Run connects to the database, applies the optional seed file and serves the
// API until an OS shutdown signal is received.
func (s *Server) Run() error {
	if s.cfg == nil {
		return errors.New("tenant api config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tenant API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	db, err := pgutil.ConnectDB(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store := tenantstore.NewStore(db)

	if cfg.Seed.File != "" {
		if err := s.applySeed(ctx, store, logger); err != nil {
			return err
		}
	}

	secret := []byte(cfg.Auth.HMACSecret)
	signer := auth.NewSigner(secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	verifier := auth.NewVerifier(secret, cfg.Auth.Issuer, cfg.Auth.JWKSURL)

	svc := service.NewLog(service.NewService(store, signer, logger), logger)

	router := s.setupRouter(svc, verifier, logger)
	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

func (s *Server) applySeed(ctx context.Context, store tenantapi.SeedStore, logger *zap.Logger) error {
	seed, err := tenantapi.LoadSeed(s.cfg.Seed.File)
	if err != nil {
		return err
	}
	if err := tenantapi.Apply(ctx, store, seed, time.Now().UTC()); err != nil {
		return fmt.Errorf("apply seed %s: %w", s.cfg.Seed.File, err)
	}
	logger.Info("Seed applied",
		zap.String("file", s.cfg.Seed.File),
		zap.Int("tenants", len(seed.Tenants)))
	return nil
}

func (s *Server) setupRouter(svc service.Service, verifier *auth.Verifier, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apphttp.RequestLogger(logger))
	r.Use(middleware.Timeout(defaultRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if s.cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	service.RegisterRoutes(r, svc, verifier, logger)

	return r
}
