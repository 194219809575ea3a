package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/daris/internal/config"
	"github.com/example/daris/internal/handlers"
	"github.com/example/daris/internal/middleware"
)

// Deps carries the constructed handlers into route registration.
type Deps struct {
	Config   *config.Config
	Payments *handlers.PaymentHandler
	Webhooks *handlers.WebhookHandler
	Carts    *handlers.CartHandler
	Admin    *handlers.AdminHandler
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Deps) {
	api := app.Group("/api")

	// Customer-facing routes
	cart := api.Group("/cart")
	cart.Post("/track", deps.Carts.Track)

	payments := api.Group("/payments")
	payments.Post("/", deps.Payments.CreatePayment)
	payments.Get("/:orderId", deps.Payments.GetPayment)
	payments.Post("/:orderId/cancel", deps.Payments.CancelPayment)

	// Gateway callbacks. The hosted gateway signs its deliveries; the
	// wallet gateway is verified by querying the order back.
	webhooks := api.Group("/webhooks")
	webhooks.Post("/wallet", deps.Webhooks.Wallet)
	webhooks.Post("/hosted", middleware.HostedSignature(deps.Config.HostedWebhookSecret), deps.Webhooks.Hosted)

	// Admin routes
	admin := api.Group("/admin", middleware.AdminAuth(deps.Config))

	admin.Get("/payments", deps.Admin.ListPayments)
	admin.Get("/payments/:id", deps.Admin.GetPayment)
	admin.Post("/payments/:id/transition", deps.Admin.TransitionPayment)
	admin.Put("/payments/:id/notes", deps.Admin.UpdateNotes)

	admin.Get("/payables", deps.Admin.ListPayables)
	admin.Post("/payables/:id/paid", deps.Admin.MarkPayablePaid)
	admin.Post("/payables/:id/cancel", deps.Admin.CancelPayable)

	admin.Get("/rates", deps.Admin.GetRates)
	admin.Put("/rates", deps.Admin.UpdateRates)
	admin.Get("/payment-methods", deps.Admin.GetMethods)
	admin.Put("/payment-methods", deps.Admin.UpdateMethods)
	admin.Get("/platform-percent", deps.Admin.GetPlatformPercent)
	admin.Put("/platform-percent", deps.Admin.SetPlatformPercent)

	admin.Get("/finance/summary", deps.Admin.FinanceSummary)
	admin.Post("/finance/entries", deps.Admin.CreateManualEntry)
	admin.Get("/finance/export", deps.Admin.ExportTransactions)

	admin.Get("/carts", deps.Admin.ListCarts)
	admin.Post("/carts/scan", deps.Admin.ScanAbandoned)
	admin.Post("/carts/:id/reminder", deps.Admin.SendCartReminder)
}
