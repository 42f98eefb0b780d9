// Package health contiene el service para health checks.
package health

import (
	"context"
	"time"

	dto "github.com/dropDatabas3/socialjohn/internal/http/v2/dto/health"
	"github.com/dropDatabas3/socialjohn/internal/observability/logger"
)

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Deps contiene las dependencias inyectables para el health service.
type Deps struct {
	StoreCheck func(ctx context.Context) error // crítico
	RedisCheck func(ctx context.Context) error // opcional, no crítico
	Version    string
	Timeout    time.Duration // por componente, default 2s
}

type healthService struct {
	deps Deps
}

// NewHealthService crea un nuevo service de health check.
func NewHealthService(deps Deps) HealthService {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	return &healthService{deps: deps}
}

func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("health"),
		logger.Op("Check"),
	)

	response := dto.HealthResponse{
		Status:     "ready",
		Version:    s.deps.Version,
		Components: make(map[string]dto.HealthStatus),
		Timestamp:  time.Now().UTC(),
	}

	// 1) Store (crítico)
	if s.deps.StoreCheck == nil {
		response.Components["store"] = dto.HealthStatus{Status: "error", Message: "not initialized"}
		response.Status = "unavailable"
	} else if err := s.ping(ctx, s.deps.StoreCheck); err != nil {
		response.Components["store"] = dto.HealthStatus{Status: "error", Message: "unreachable"}
		response.Status = "unavailable"
		log.Error("store unavailable", logger.Err(err))
	} else {
		response.Components["store"] = dto.HealthStatus{Status: "ok"}
	}

	// 2) Redis (rate limiting; el middleware es fail-open)
	switch {
	case s.deps.RedisCheck == nil:
		response.Components["redis"] = dto.HealthStatus{Status: "disabled"}
	default:
		if err := s.ping(ctx, s.deps.RedisCheck); err != nil {
			response.Components["redis"] = dto.HealthStatus{Status: "error", Message: "unreachable"}
			if response.Status == "ready" {
				response.Status = "degraded"
			}
			log.Warn("redis unavailable", logger.Err(err))
		} else {
			response.Components["redis"] = dto.HealthStatus{Status: "ok"}
		}
	}

	return response
}

func (s *healthService) ping(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()
	return check(ctx)
}
