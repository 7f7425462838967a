package v1

import (
	"cvalign/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

func RegisterSkills(r fiber.Router, skillHandler *handler.SkillHandler) {
	if r == nil || skillHandler == nil {
		return
	}
	skillHandler.RegisterRoutes(r)
}

// RegisterWrites mounts the routes that persist skills. r is expected to carry
// the auth middleware.
func RegisterWrites(r fiber.Router, skillHandler *handler.SkillHandler, enrichmentHandler *handler.EnrichmentHandler) {
	if r == nil {
		return
	}
	if skillHandler != nil {
		skillHandler.RegisterWriteRoutes(r)
	}
	if enrichmentHandler != nil {
		enrichmentHandler.RegisterRoutes(r)
	}
}
