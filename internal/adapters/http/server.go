package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-router/internal/core/domain"
	"github.com/melih/lighthouse-router/internal/core/ports"
	"github.com/rs/zerolog"
)

// bodyLimit matches the request size the container accepts for uploads.
const bodyLimit = 100 * 1024 * 1024

// NewProxyApp builds the public edge. It has no routes of its own: every
// method and path goes to the container.
func NewProxyApp(forwarder ports.RequestForwarder, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		// Date comes from the container, not from the edge.
		DisableDefaultDate: true,
		BodyLimit:          bodyLimit,
		ErrorHandler:          ErrorHandler(log),
	})
	app.Use(RequestLogger(log))
	app.Use(NewProxyHandler(forwarder).ProxyRequest)
	return app
}

// NewAdminApp builds the admin listener.
func NewAdminApp(inspector ports.ContainerInspector, identity domain.ContainerIdentity, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(log),
	})
	app.Use(RequestLogger(log))

	admin := NewAdminHandler(inspector, identity)
	container := app.Group("/container")
	container.Get("/", admin.Status)
	container.Post("/stop", admin.Stop)
	container.Get("/logs", admin.Logs)
	return app
}
