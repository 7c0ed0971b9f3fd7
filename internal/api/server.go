// Package api implements the HTTP surface of the dispatch service.
package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"courierdispatch/internal/config"
	"courierdispatch/internal/dispatch"
	"courierdispatch/internal/fleet"
	"courierdispatch/internal/logger"
	"courierdispatch/internal/metrics"
	"courierdispatch/internal/store"
)

type Server struct {
	Cfg      *config.Config
	Store    store.Store
	Dispatch *dispatch.Service
	Fleet    *fleet.Registry
	Broker   EventBroker

	limiter *rate.Limiter
	started time.Time
}

// NewServer wires the server from configuration. An empty database DSN
// selects the in-memory store; an empty or unreachable Redis URL the
// in-process broker.
func NewServer(cfg *config.Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var st store.Store
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		st = store.NewMemory()
	} else {
		dsn, err := cfg.Database.DSNFor("", "")
		if err != nil {
			return nil, err
		}
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		sp.SetPool(cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err := sp.Migrate(ctx); err != nil {
			logger.Warnw("migrate failed", "error", err)
		}
		st = sp
	}

	var broker EventBroker = NewBroker()
	if cfg.Redis.URL != "" {
		if rb, err := NewRedisBroker(cfg.Redis.URL, cfg.Redis.Prefix); err == nil {
			broker = rb
		} else {
			logger.Warnw("redis broker unavailable, using in-process broker", "error", err)
		}
	}

	reg := fleet.New()
	svc, err := dispatch.New(cfg, st, reg)
	if err != nil {
		return nil, err
	}
	profiles, err := config.LoadCourierTypes(cfg.Couriers.File)
	if err != nil {
		return nil, err
	}
	if err := st.SaveCourierTypes(ctx, profiles); err != nil {
		logger.Warnw("save courier types failed", "error", err)
	}

	metrics.RegisterDefault()
	s := &Server{Cfg: cfg, Store: st, Dispatch: svc, Fleet: reg, Broker: broker, started: time.Now()}
	if cfg.Rate.RPS > 0 {
		burst := cfg.Rate.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Rate.RPS), burst)
	}
	return s, nil
}

// Handler returns the routed handler with access logging and throttling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Engine
	mux.HandleFunc("/v1/delivery/check", s.DeliveryCheckHandler)
	mux.HandleFunc("/v1/plans", s.PlansHandler)
	mux.HandleFunc("/v1/plans/", s.PlanByIDHandler)
	mux.HandleFunc("/v1/cover", s.CoverHandler)
	mux.HandleFunc("/v1/courier-types", s.CourierTypesHandler)

	// Couriers
	mux.HandleFunc("/v1/couriers", s.CouriersHandler)
	mux.HandleFunc("/v1/couriers/status", s.CourierStatusHandler)
	mux.HandleFunc("/v1/couriers/average-cost", s.AverageCostHandler)
	mux.HandleFunc("/v1/couriers/ws", s.CourierFeedHandler)

	// Admin
	mux.HandleFunc("/v1/admin/runs", s.RunsHandler)
	mux.HandleFunc("/debug", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/openapi.json", s.OpenAPIJSONHandler)
	mux.HandleFunc("/docs", s.DocsHandler)

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.accessLog(s.rateLimit(mux))
}

// Close releases the broker and the store.
func (s *Server) Close() error {
	err := s.Broker.Close()
	if c, ok := s.Store.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
