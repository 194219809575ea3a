package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/daris/internal/services"
)

// WebhookHandler receives asynchronous gateway callbacks. Duplicate
// deliveries are acknowledged with 200 so gateways do not retry-storm;
// only verification failures and unrecoverable errors answer non-200.
type WebhookHandler struct {
	wallet *services.WalletGateway
	hosted *services.HostedGateway
}

func NewWebhookHandler(wallet *services.WalletGateway, hosted *services.HostedGateway) *WebhookHandler {
	return &WebhookHandler{wallet: wallet, hosted: hosted}
}

// Wallet handles redirect-wallet webhook deliveries.
func (h *WebhookHandler) Wallet(c *fiber.Ctx) error {
	if h.wallet == nil {
		return services.WriteError(c, services.NewError(services.ErrGatewayUnavailable, "wallet gateway disabled"))
	}

	result, err := h.wallet.Reconcile(c.Context(), c.Body())
	if err != nil {
		return services.WriteError(c, err)
	}

	return c.JSON(fiber.Map{
		"received":          true,
		"applied":           result.Applied,
		"merchant_order_id": result.MerchantOrderID,
		"status":            result.Target,
	})
}

// Hosted handles hosted-session webhook deliveries. The signature was
// already checked by middleware; the service verifies again before trusting
// the payload.
func (h *WebhookHandler) Hosted(c *fiber.Ctx) error {
	signature := c.Get("X-Gateway-Signature")
	result, err := h.hosted.Reconcile(c.Context(), c.Body(), signature)
	if err != nil {
		return services.WriteError(c, err)
	}

	return c.JSON(fiber.Map{
		"received":          true,
		"applied":           result.Applied,
		"merchant_order_id": result.MerchantOrderID,
		"status":            result.Target,
	})
}
