package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"docportal/internal/http/middleware"
	"docportal/internal/service"
)

// ListClients returns the clients registered with the viewing firm's invite code.
//
// @Summary List clients of a firm
// @Tags clients
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string][]model.Profile
// @Failure 403 {object} errorPayload
// @Router /clients [get]
func ListClients(svc service.ClientService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := backendContext(c, timeout)
		defer cancel()

		clients, err := svc.ListClients(ctx, middleware.IdentityFrom(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": clients})
	}
}
