package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cvalign/internal/config"
	"cvalign/internal/delivery/http/handler"
	"cvalign/internal/delivery/http/middleware"
	"cvalign/internal/delivery/http/routes"
	"cvalign/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
}

func New(c *Container) *App {
	f := fiber.New(fiber.Config{
		AppName:      c.Config.App.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	registerGlobalMiddleware(f, c.Logger)
	registerRoutes(f, c)

	return &App{Fiber: f, Container: c}
}

// Bootstrap builds the container, starts background workers and returns the
// HTTP app with a cleanup that stops everything in reverse order.
func Bootstrap(cfg config.Config) (*App, func() error, error) {
	logger := log.New(log.Writer(), "", log.LstdFlags|log.LUTC)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()

	c, err := NewContainer(initCtx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	runCtx, stop := context.WithCancel(context.Background())
	c.Start(runCtx)

	cleanup := func() error {
		stop()
		return c.Close()
	}
	return New(c), cleanup, nil
}

func registerGlobalMiddleware(app *fiber.App, logger *log.Logger) {
	if app == nil {
		return
	}

	app.Use(middleware.NewAccessLogMiddleware(logger).Middleware())
	app.Use(middleware.NewErrorMiddleware(logger).Middleware())
}

func registerRoutes(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	checks := make(map[string]handler.HealthCheck)
	for name, fn := range c.HealthChecks() {
		checks[name] = fn
	}

	routes.NewRegistry(routes.Handlers{
		Health:     handler.NewHealthHandler(checks),
		Skills:     handler.NewSkillHandler(c.SkillUC),
		Enrichment: handler.NewEnrichmentHandler(c.EnrichmentUC),
		WS:         ws.NewHandler(c.Hub, c.Logger, c.Config.App.WSOrigins...),
		Auth:       middleware.NewAuthMiddleware(c.JWT),
	}).Register(app)
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
