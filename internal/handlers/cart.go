package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/daris/internal/services"
)

// CartHandler manages checkout session tracking.
type CartHandler struct {
	carts *services.CartService
}

func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// Track creates or refreshes an in-progress checkout session.
func (h *CartHandler) Track(c *fiber.Ctx) error {
	var req services.TrackInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.carts.Track(c.Context(), req)
	if err != nil {
		return services.WriteError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"session_id":       session.ID,
			"status":           session.Status,
			"subtotal":         session.Subtotal,
			"currency":         session.Currency,
			"last_activity_at": session.LastActivityAt,
		},
	})
}
