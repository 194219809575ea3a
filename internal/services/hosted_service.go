package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/example/daris/internal/models"
)

// HostedSessionRequest is what the hosted card/wallet gateway needs to open
// a checkout session correlated to our merchant order id.
type HostedSessionRequest struct {
	MerchantOrderID string `json:"merchant_order_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	ReturnURL       string `json:"return_url"`
}

// HostedSession is the gateway-side checkout session.
type HostedSession struct {
	ID          string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// HostedClient opens checkout sessions at the hosted gateway.
type HostedClient interface {
	CreateSession(ctx context.Context, req HostedSessionRequest) (*HostedSession, error)
}

// httpHostedClient talks to the hosted gateway's session API.
type httpHostedClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHostedClient(baseURL, apiKey string) HostedClient {
	return &httpHostedClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: gatewayCallTimeout},
	}
}

func (c *httpHostedClient) CreateSession(ctx context.Context, reqBody HostedSessionRequest) (*HostedSession, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("hosted session failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var session HostedSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("hosted session unmarshal: %w", err)
	}
	if session.ID == "" || session.RedirectURL == "" {
		return nil, fmt.Errorf("hosted session response incomplete")
	}
	return &session, nil
}

// SignPayload computes the webhook signature the hosted gateway sends in
// X-Gateway-Signature: hex(HMAC-SHA256(secret, body)).
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook body against its signature header.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := SignPayload(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HostedGateway is the hosted-session channel: the gateway owns a checkout
// session id correlated to our merchant order id, and every webhook is
// signature-verified before its status is trusted.
type HostedGateway struct {
	db      *gorm.DB
	builder *paymentBuilder
	client  HostedClient
	sm      *StateMachine
	secret  string
	siteURL string
}

func NewHostedGateway(db *gorm.DB, currency *CurrencyService, catalog CourseCatalog, sm *StateMachine, client HostedClient, secret, siteURL string) *HostedGateway {
	return &HostedGateway{
		db:      db,
		builder: newPaymentBuilder(db, currency, catalog),
		client:  client,
		sm:      sm,
		secret:  secret,
		siteURL: siteURL,
	}
}

func (g *HostedGateway) Name() models.PaymentGateway {
	return models.GatewayHosted
}

func (g *HostedGateway) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error) {
	record, err := g.builder.buildRecord(ctx, models.GatewayHosted, input)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, gatewayCallTimeout)
	defer cancel()

	session, err := g.client.CreateSession(callCtx, HostedSessionRequest{
		MerchantOrderID: record.MerchantOrderID,
		Amount:          record.Amount.StringFixed(2),
		Currency:        record.Currency,
		CustomerName:    record.CustomerName,
		CustomerEmail:   record.CustomerEmail,
		ReturnURL:       fmt.Sprintf("%s/payment/result?order=%s", g.siteURL, record.MerchantOrderID),
	})
	if err != nil {
		log.Printf("[Hosted] session creation failed for %s: %v", record.MerchantOrderID, err)
		return nil, NewError(ErrGatewayUnavailable, "hosted session creation failed")
	}

	if err := g.db.WithContext(ctx).Model(record).
		Update("external_ref", session.ID).Error; err != nil {
		return nil, err
	}
	record.ExternalRef = session.ID

	return &CreatePaymentResult{
		Payment:     record,
		RedirectURL: session.RedirectURL,
	}, nil
}

type hostedWebhookEvent struct {
	SessionID       string `json:"session_id"`
	MerchantOrderID string `json:"merchant_order_id"`
	Status          string `json:"status"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
}

// mapHostedStatus translates the hosted gateway's vocabulary.
func mapHostedStatus(external string) (models.PaymentStatus, bool) {
	switch external {
	case "processing":
		return models.PaymentProcessing, true
	case "paid":
		return models.PaymentSuccess, true
	case "failed", "expired":
		return models.PaymentFailed, true
	case "refunded":
		return models.PaymentRefunded, true
	default:
		return "", false
	}
}

// Reconcile verifies the payload signature, then applies the same
// at-least-once discipline as the wallet channel. A bad signature is logged
// and returns Unverified without touching any record.
func (g *HostedGateway) Reconcile(ctx context.Context, payload []byte, signature string) (*ReconcileResult, error) {
	if !VerifySignature(g.secret, payload, signature) {
		log.Printf("[Hosted] webhook signature verification failed")
		return nil, NewError(ErrUnverified, "bad webhook signature")
	}

	var event hostedWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, NewError(ErrValidation, "malformed webhook payload")
	}
	if event.MerchantOrderID == "" && event.SessionID == "" {
		return nil, NewError(ErrValidation, "webhook payload has no order reference")
	}

	record, err := findByMerchantOrderID(g.db.WithContext(ctx), event.MerchantOrderID, event.SessionID)
	if err != nil {
		return nil, err
	}

	target, ok := mapHostedStatus(event.Status)
	if !ok {
		return nil, NewError(ErrValidation, "unknown hosted status: "+event.Status)
	}

	result := &ReconcileResult{
		MerchantOrderID: record.MerchantOrderID,
		ExternalStatus:  event.Status,
		Target:          target,
		Payment:         record,
	}

	if record.Status == target {
		log.Printf("[Hosted] duplicate delivery for %s (already %s)", record.MerchantOrderID, target)
		return result, nil
	}
	if TransitionPath(record.Status, target) == nil {
		log.Printf("[Hosted] ignoring %s for %s: unreachable from %s",
			event.Status, record.MerchantOrderID, record.Status)
		return result, nil
	}

	updated, applied, err := g.sm.Advance(ctx, record.ID, target, "gateway:hosted", "webhook "+event.Status)
	if err != nil {
		return nil, err
	}
	result.Payment = updated
	result.Applied = applied
	return result, nil
}
