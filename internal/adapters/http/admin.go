package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-router/internal/core/domain"
	"github.com/melih/lighthouse-router/internal/core/ports"
)

// AdminHandler exposes the container state on the admin listener.
type AdminHandler struct {
	inspector ports.ContainerInspector
	identity  domain.ContainerIdentity
}

func NewAdminHandler(inspector ports.ContainerInspector, identity domain.ContainerIdentity) *AdminHandler {
	return &AdminHandler{inspector: inspector, identity: identity}
}

func (h *AdminHandler) Status(c *fiber.Ctx) error {
	inst, err := h.inspector.Status(c.UserContext(), h.identity)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(inst)
}

func (h *AdminHandler) Stop(c *fiber.Ctx) error {
	if err := h.inspector.Stop(c.UserContext(), h.identity); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *AdminHandler) Logs(c *fiber.Ctx) error {
	logs, err := h.inspector.Logs(c.UserContext(), h.identity)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendStream(logs)
}
