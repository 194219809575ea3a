package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/plutov/paypal/v4"
	"gorm.io/gorm"

	"github.com/example/daris/internal/models"
)

// gatewayCallTimeout bounds every network call to an external gateway so a
// hung gateway surfaces GatewayUnavailable instead of blocking the request.
const gatewayCallTimeout = 15 * time.Second

// WalletClient is the slice of the PayPal client the wallet gateway uses,
// extracted so tests can stub the network.
type WalletClient interface {
	CreateOrder(ctx context.Context, intent string, purchaseUnits []paypal.PurchaseUnitRequest, payer *paypal.CreateOrderPayer, appContext *paypal.ApplicationContext) (*paypal.Order, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string, captureOrderRequest paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error)
}

// WalletGateway is the redirect-based wallet channel: CreatePayment returns
// an approval URL, the wallet posts webhooks after the customer approves.
type WalletGateway struct {
	db      *gorm.DB
	builder *paymentBuilder
	client  WalletClient
	sm      *StateMachine
	siteURL string
}

func NewWalletGateway(db *gorm.DB, currency *CurrencyService, catalog CourseCatalog, sm *StateMachine, client WalletClient, siteURL string) *WalletGateway {
	return &WalletGateway{
		db:      db,
		builder: newPaymentBuilder(db, currency, catalog),
		client:  client,
		sm:      sm,
		siteURL: siteURL,
	}
}

func (g *WalletGateway) Name() models.PaymentGateway {
	return models.GatewayWallet
}

// CreatePayment creates the pending record, then the wallet-side order. A
// gateway failure leaves the record pending (retry stays possible) and
// surfaces GatewayUnavailable.
func (g *WalletGateway) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error) {
	record, err := g.builder.buildRecord(ctx, models.GatewayWallet, input)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, gatewayCallTimeout)
	defer cancel()

	purchaseUnits := []paypal.PurchaseUnitRequest{
		{
			ReferenceID: record.MerchantOrderID,
			Amount: &paypal.PurchaseUnitAmount{
				Currency: record.Currency,
				Value:    record.Amount.StringFixed(2),
			},
			Description: "Order " + record.MerchantOrderID,
		},
	}
	applicationContext := &paypal.ApplicationContext{
		ReturnURL: fmt.Sprintf("%s/payment/result?order=%s&action=success", g.siteURL, record.MerchantOrderID),
		CancelURL: fmt.Sprintf("%s/payment/result?order=%s&action=cancel", g.siteURL, record.MerchantOrderID),
	}

	order, err := g.client.CreateOrder(callCtx, "CAPTURE", purchaseUnits, nil, applicationContext)
	if err != nil {
		log.Printf("[Wallet] CreateOrder failed for %s: %v", record.MerchantOrderID, err)
		return nil, NewError(ErrGatewayUnavailable, "wallet order creation failed")
	}

	approvalURL := approvalLink(order)
	if approvalURL == "" {
		return nil, NewError(ErrGatewayUnavailable, "wallet returned no approval URL")
	}

	if err := g.db.WithContext(ctx).Model(record).
		Update("external_ref", order.ID).Error; err != nil {
		return nil, err
	}
	record.ExternalRef = order.ID

	return &CreatePaymentResult{
		Payment:     record,
		RedirectURL: approvalURL,
	}, nil
}

type walletWebhookEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			ReferenceID string `json:"reference_id"`
		} `json:"purchase_units"`
	} `json:"resource"`
}

// mapWalletStatus translates the wallet's vocabulary into the internal enum.
func mapWalletStatus(external string) (models.PaymentStatus, bool) {
	switch external {
	case "APPROVED":
		return models.PaymentProcessing, true
	case "COMPLETED":
		return models.PaymentSuccess, true
	case "DENIED", "VOIDED":
		return models.PaymentFailed, true
	case "REFUNDED":
		return models.PaymentRefunded, true
	default:
		return "", false
	}
}

// Reconcile applies one webhook delivery. Webhooks arrive at least once:
// deliveries that map to the already-applied status, or to a status no
// longer reachable, are acknowledged as no-ops. The payload itself is
// unauthenticated, so nothing transitions on its say-so alone: an APPROVED
// order is captured (the capture call fails on an order the gateway never
// approved), and every other status is confirmed by querying the order
// back before the record moves.
func (g *WalletGateway) Reconcile(ctx context.Context, payload []byte) (*ReconcileResult, error) {
	var event walletWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, NewError(ErrValidation, "malformed webhook payload")
	}
	if len(event.Resource.PurchaseUnits) == 0 && event.Resource.ID == "" {
		return nil, NewError(ErrValidation, "webhook payload has no order reference")
	}

	merchantOrderID := ""
	if len(event.Resource.PurchaseUnits) > 0 {
		merchantOrderID = event.Resource.PurchaseUnits[0].ReferenceID
	}

	record, err := findByMerchantOrderID(g.db.WithContext(ctx), merchantOrderID, event.Resource.ID)
	if err != nil {
		return nil, err
	}

	target, ok := mapWalletStatus(event.Resource.Status)
	if !ok {
		return nil, NewError(ErrValidation, "unknown wallet status: "+event.Resource.Status)
	}

	result := &ReconcileResult{
		MerchantOrderID: record.MerchantOrderID,
		ExternalStatus:  event.Resource.Status,
		Target:          target,
		Payment:         record,
	}

	// APPROVED is handled before the duplicate check: a record holding at
	// processing after a failed capture must retry the capture when the
	// gateway redelivers, not swallow the delivery as a duplicate.
	if event.Resource.Status == "APPROVED" {
		if record.Status != models.PaymentPending && record.Status != models.PaymentProcessing {
			log.Printf("[Wallet] ignoring APPROVED for %s: record is %s", record.MerchantOrderID, record.Status)
			return result, nil
		}
		return g.captureApproved(ctx, record, result)
	}

	if record.Status == target {
		log.Printf("[Wallet] duplicate delivery for %s (already %s)", record.MerchantOrderID, target)
		return result, nil
	}
	if TransitionPath(record.Status, target) == nil {
		log.Printf("[Wallet] ignoring %s for %s: unreachable from %s",
			event.Resource.Status, record.MerchantOrderID, record.Status)
		return result, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, gatewayCallTimeout)
	defer cancel()

	order, err := g.client.GetOrder(callCtx, record.ExternalRef)
	if err != nil {
		log.Printf("[Wallet] order lookup failed for %s: %v", record.MerchantOrderID, err)
		return nil, NewError(ErrGatewayUnavailable, "order verification failed")
	}
	if order.Status != event.Resource.Status {
		log.Printf("[Wallet] delivery for %s claims %s but order is %s",
			record.MerchantOrderID, event.Resource.Status, order.Status)
		return nil, NewError(ErrUnverified, "order status mismatch")
	}

	updated, applied, err := g.sm.Advance(ctx, record.ID, target, "gateway:wallet", "webhook "+event.Resource.Status)
	if err != nil {
		return nil, err
	}
	result.Payment = updated
	result.Applied = applied
	return result, nil
}

// captureApproved moves an approved order to processing, captures the funds
// and, when the capture completes, advances to success. A record already at
// processing skips the first step, which is how a redelivered APPROVED
// retries a capture that failed earlier.
func (g *WalletGateway) captureApproved(ctx context.Context, record *models.PaymentRecord, result *ReconcileResult) (*ReconcileResult, error) {
	updated, applied, err := g.sm.Advance(ctx, record.ID, models.PaymentProcessing, "gateway:wallet", "webhook APPROVED")
	if err != nil {
		return nil, err
	}
	result.Payment = updated
	result.Applied = applied

	callCtx, cancel := context.WithTimeout(ctx, gatewayCallTimeout)
	defer cancel()

	capture, err := g.client.CaptureOrder(callCtx, record.ExternalRef, paypal.CaptureOrderRequest{})
	if err != nil {
		log.Printf("[Wallet] capture failed for %s: %v", record.MerchantOrderID, err)
		return nil, NewError(ErrGatewayUnavailable, "capture failed")
	}

	if capture.Status != "COMPLETED" {
		log.Printf("[Wallet] capture for %s not completed: %s", record.MerchantOrderID, capture.Status)
		return result, nil
	}

	updated, applied, err = g.sm.Advance(ctx, record.ID, models.PaymentSuccess, "gateway:wallet", "capture completed")
	if err != nil {
		return nil, err
	}
	result.Payment = updated
	result.Applied = result.Applied || applied
	result.Target = models.PaymentSuccess
	return result, nil
}

func approvalLink(order *paypal.Order) string {
	for _, link := range order.Links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}
