package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	ViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardbot_violations_total",
			Help: "Violations detected, by triggering check",
		},
		[]string{"check"},
	)

	RestrictionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardbot_restrictions_active",
			Help: "Restriction entries currently tracked",
		},
	)

	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardbot_verifications_total",
			Help: "New-member verification outcomes",
		},
		[]string{"outcome"},
	)

	AppealsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardbot_appeals_total",
			Help: "Report and appeal submissions",
		},
		[]string{"kind"},
	)
)

// Server exposes the Prometheus endpoint as a lifecycle component.
type Server struct {
	addr string
	srv  *http.Server
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.srv = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithField("error", err.Error()).Error("metrics server failed")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
