package routes

import (
	v1 "cvalign/internal/delivery/http/routes/v1"

	"github.com/gofiber/fiber/v3"
)

func RegisterV1(r fiber.Router, h Handlers) {
	if r == nil {
		return
	}

	v1.RegisterSkills(r, h.Skills)

	protected := r.Group("", h.Auth.Middleware())
	v1.RegisterWrites(protected, h.Skills, h.Enrichment)
}
