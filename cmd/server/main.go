package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/plutov/paypal/v4"
	"gorm.io/gorm"

	"github.com/example/daris/internal/config"
	"github.com/example/daris/internal/database"
	"github.com/example/daris/internal/handlers"
	"github.com/example/daris/internal/models"
	"github.com/example/daris/internal/routes"
	"github.com/example/daris/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	settings := services.NewSettingsService(db)
	currency := services.NewCurrencyService(settings)
	catalog := services.NewCatalogService(db)
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	carts := services.NewCartService(db, telegram)
	ledger := services.NewLedgerService(db, currency)
	revenue := services.NewRevenueService(db, settings, catalog)
	sm := services.NewStateMachine(db, ledger, revenue, carts, telegram)

	storage, err := services.NewLocalStorage(cfg.UploadDir, cfg.SiteURL+cfg.UploadBaseURL)
	if err != nil {
		log.Fatalf("upload storage: %v", err)
	}

	gateways := services.GatewayRegistry{
		models.GatewayManual: services.NewManualGateway(db, currency, catalog, settings),
	}

	wallet := buildWalletGateway(cfg, db, currency, catalog, sm)
	if wallet != nil {
		gateways[models.GatewayWallet] = wallet
	}

	hostedClient := services.NewHostedClient(cfg.HostedBaseURL, cfg.HostedAPIKey)
	hosted := services.NewHostedGateway(db, currency, catalog, sm, hostedClient, cfg.HostedWebhookSecret, cfg.SiteURL)
	gateways[models.GatewayHosted] = hosted

	app := fiber.New(fiber.Config{
		AppName: "Daris Payments",
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Static(cfg.UploadBaseURL, cfg.UploadDir)

	routes.Register(app, routes.Deps{
		Config:   cfg,
		Payments: handlers.NewPaymentHandler(db, gateways, sm),
		Webhooks: handlers.NewWebhookHandler(wallet, hosted),
		Carts:    handlers.NewCartHandler(carts),
		Admin:    handlers.NewAdminHandler(db, sm, revenue, currency, settings, ledger, carts, storage),
	})

	go abandonmentLoop(carts, cfg.CartAbandonAfter, cfg.CartScanEvery)

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}

// buildWalletGateway authenticates against the wallet provider. A missing or
// rejected credential disables the gateway instead of blocking startup; the
// other gateways keep working.
func buildWalletGateway(cfg *config.Config, db *gorm.DB, currency *services.CurrencyService,
	catalog services.CourseCatalog, sm *services.StateMachine) *services.WalletGateway {
	if cfg.WalletClientID == "" || cfg.WalletClientSecret == "" {
		log.Printf("[Wallet] credentials not configured, gateway disabled")
		return nil
	}

	base := paypal.APIBaseSandBox
	if cfg.WalletLive {
		base = paypal.APIBaseLive
	}

	client, err := paypal.NewClient(cfg.WalletClientID, cfg.WalletClientSecret, base)
	if err != nil {
		log.Printf("[Wallet] client init failed, gateway disabled: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := client.GetAccessToken(ctx); err != nil {
		log.Printf("[Wallet] token warm-up failed, gateway disabled: %v", err)
		return nil
	}

	return services.NewWalletGateway(db, currency, catalog, sm, client, cfg.SiteURL)
}

// abandonmentLoop periodically flips stale active carts to abandoned.
func abandonmentLoop(carts *services.CartService, threshold, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		flipped, err := carts.CheckAbandonment(context.Background(), threshold)
		if err != nil {
			log.Printf("[Cart] abandonment scan failed: %v", err)
			continue
		}
		if flipped > 0 {
			log.Printf("[Cart] marked %d sessions abandoned", flipped)
		}
	}
}
