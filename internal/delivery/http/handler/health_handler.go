package handler

import (
	"context"
	"time"

	"cvalign/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

// HealthCheck checks one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness plus the state of each named dependency.
// Dependencies are informational: the service stays up without them.
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/health", h.Health)
}

func (h *HealthHandler) Health(c fiber.Ctx) error {
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
		if err := check(ctx); err != nil {
			deps[name] = "down: " + err.Error()
		} else {
			deps[name] = "up"
		}
		cancel()
	}
	return response.OK(c, fiber.Map{
		"status":       "ok",
		"dependencies": deps,
	})
}
