// Package server реализует gRPC-сервер проверки здоровья.
//
// HealthServer периодически опрашивает зависимости сервиса и публикует их
// состояние через стандартный протокол grpc.health.v1. Каждая зависимость
// доступна как отдельный сервис, пустое имя отражает общее состояние.
package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/user-management/internal/lib/sl"
)

const probeTimeout = 2 * time.Second

// Pinger проверяет доступность зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer реализует gRPC-сервис проверки здоровья.
type HealthServer struct {
	srv      *health.Server
	deps     map[string]Pinger
	interval time.Duration
	log      *slog.Logger
}

// NewHealthServer создает HealthServer, опрашивающий deps с периодом interval.
func NewHealthServer(deps map[string]Pinger, interval time.Duration, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		srv:      health.NewServer(),
		deps:     deps,
		interval: interval,
		log:      logger,
	}
}

// Register регистрирует сервис на gRPC-сервере.
func (s *HealthServer) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, s.srv)
}

// Probe опрашивает зависимости и обновляет их статусы. Возвращает true,
// если все зависимости доступны.
func (s *HealthServer) Probe(ctx context.Context) bool {
	healthy := true
	for name, dep := range s.deps {
		pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := dep.Ping(pingCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			healthy = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.log.Warn("dependency is unavailable", slog.String("dependency", name), sl.Err(err))
		}
		s.srv.SetServingStatus(name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.srv.SetServingStatus("", overall)
	return healthy
}

// Run опрашивает зависимости до отмены ctx, после чего переводит все
// сервисы в NOT_SERVING.
func (s *HealthServer) Run(ctx context.Context) {
	s.Probe(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.srv.Shutdown()
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}
