package routes

import (
	"cvalign/internal/delivery/http/handler"
	"cvalign/internal/delivery/http/middleware"
	"cvalign/internal/ws"

	"github.com/gofiber/fiber/v3"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health     *handler.HealthHandler
	Skills     *handler.SkillHandler
	Enrichment *handler.EnrichmentHandler
	WS         *ws.Handler
	Auth       *middleware.AuthMiddleware
}

type Registry struct {
	h Handlers
}

func NewRegistry(h Handlers) *Registry {
	return &Registry{h: h}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.registerHealth(app)
	r.registerWS(app)
	r.registerAPI(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	if r.h.Health != nil {
		r.h.Health.RegisterRoutes(app)
	}
}

func (r *Registry) registerWS(app *fiber.App) {
	if r.h.WS != nil {
		app.Get("/ws/skills", r.h.WS.HandleSkillsWS)
	}
}

func (r *Registry) registerAPI(app *fiber.App) {
	api := app.Group("/api")
	RegisterV1(api.Group("/v1"), r.h)
}
