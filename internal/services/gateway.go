package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/daris/internal/models"
)

// BillingInfo is the customer side of a payment request.
type BillingInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// LineItemRequest references a catalog item to purchase. Prices always come
// from the catalog, never from the client.
type LineItemRequest struct {
	CourseID  *uuid.UUID `json:"course_id"`
	ProductID *uuid.UUID `json:"product_id"`
	Quantity  int        `json:"quantity"`
}

// CreatePaymentInput is the gateway-independent payment request.
type CreatePaymentInput struct {
	Method        string            `json:"method"`
	Currency      string            `json:"currency"`
	Billing       BillingInfo       `json:"billing"`
	Items         []LineItemRequest `json:"items"`
	CartSessionID *uuid.UUID        `json:"cart_session_id"`
	ProofURL      string            `json:"proof_url"`
}

// CreatePaymentResult is what a gateway hands back to the checkout flow:
// either a redirect URL (wallet, hosted) or transfer instructions (manual).
type CreatePaymentResult struct {
	Payment      *models.PaymentRecord `json:"payment"`
	RedirectURL  string                `json:"redirect_url,omitempty"`
	Instructions string                `json:"instructions,omitempty"`
}

// ReconcileResult reports what a gateway callback did to a record. Applied
// is false for duplicate or out-of-order deliveries that were safely
// ignored.
type ReconcileResult struct {
	MerchantOrderID string                `json:"merchant_order_id"`
	ExternalStatus  string                `json:"external_status"`
	Target          models.PaymentStatus  `json:"target"`
	Applied         bool                  `json:"applied"`
	Payment         *models.PaymentRecord `json:"payment,omitempty"`
}

// Gateway is the contract every payment channel satisfies. Adapters only
// translate vocabulary; the state machine is the sole status mutator.
type Gateway interface {
	Name() models.PaymentGateway
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error)
}

// GatewayRegistry maps gateway names to adapters.
type GatewayRegistry map[models.PaymentGateway]Gateway

func (r GatewayRegistry) Get(name models.PaymentGateway) (Gateway, error) {
	gw, ok := r[name]
	if !ok {
		return nil, NewError(ErrValidation, "unknown gateway: "+string(name))
	}
	return gw, nil
}

// paymentBuilder creates pending payment records with catalog-resolved
// prices and a rate snapshot; shared by all adapters.
type paymentBuilder struct {
	db       *gorm.DB
	currency *CurrencyService
	catalog  CourseCatalog
}

func newPaymentBuilder(db *gorm.DB, currency *CurrencyService, catalog CourseCatalog) *paymentBuilder {
	return &paymentBuilder{db: db, currency: currency, catalog: catalog}
}

func newMerchantOrderID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "PAY-" + raw[:16]
}

func (b *paymentBuilder) buildRecord(ctx context.Context, gateway models.PaymentGateway, input CreatePaymentInput) (*models.PaymentRecord, error) {
	if strings.TrimSpace(input.Billing.Name) == "" || strings.TrimSpace(input.Billing.Email) == "" {
		return nil, NewError(ErrValidation, "billing name and email are required")
	}
	if len(input.Items) == 0 {
		return nil, NewError(ErrValidation, "at least one line item is required")
	}
	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = ReferenceCurrency
	}

	items := make([]models.PaymentLineItem, 0, len(input.Items))
	total := decimal.Zero
	for _, req := range input.Items {
		if req.Quantity <= 0 {
			return nil, NewError(ErrValidation, "item quantity must be positive")
		}

		var (
			title       string
			price       decimal.Decimal
			srcCurrency string
			revenueType models.RevenueType
		)
		switch {
		case req.CourseID != nil:
			course, err := b.catalog.Course(ctx, *req.CourseID)
			if err != nil {
				return nil, err
			}
			title, price, srcCurrency, revenueType = course.Title, course.Price, course.Currency, course.RevenueType
		case req.ProductID != nil:
			product, err := b.catalog.Product(ctx, *req.ProductID)
			if err != nil {
				return nil, err
			}
			title, price, srcCurrency, revenueType = product.Title, product.Price, product.Currency, models.RevenueProductSale
		default:
			return nil, NewError(ErrValidation, "line item needs a course or product id")
		}

		unitPrice, err := b.currency.Convert(ctx, price, srcCurrency, currency)
		if err != nil {
			return nil, err
		}
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))
		total = total.Add(lineTotal)

		items = append(items, models.PaymentLineItem{
			CourseID:    req.CourseID,
			ProductID:   req.ProductID,
			Title:       title,
			RevenueType: revenueType,
			Quantity:    req.Quantity,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
		})
	}

	snapshot, err := b.currency.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	record := models.PaymentRecord{
		MerchantOrderID: newMerchantOrderID(),
		Gateway:         gateway,
		Method:          input.Method,
		Status:          models.PaymentPending,
		Amount:          total,
		Currency:        currency,
		RateSnapshot:    snapshot,
		CustomerName:    input.Billing.Name,
		CustomerEmail:   input.Billing.Email,
		CustomerPhone:   input.Billing.Phone,
		CustomerAddress: input.Billing.Address,
		ProofURL:        input.ProofURL,
		CartSessionID:   input.CartSessionID,
		Items:           items,
	}

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		entry := models.PaymentStatusEntry{
			PaymentRecordID: record.ID,
			Status:          models.PaymentPending,
			Actor:           "system",
			Note:            "payment created via " + string(gateway),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// findByMerchantOrderID resolves a webhook's correlation id to a record.
func findByMerchantOrderID(db *gorm.DB, merchantOrderID, externalRef string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	query := db.Preload("Items")
	if merchantOrderID != "" {
		if err := query.First(&record, "merchant_order_id = ?", merchantOrderID).Error; err == nil {
			return &record, nil
		}
	}
	if externalRef != "" {
		if err := query.First(&record, "external_ref = ?", externalRef).Error; err == nil {
			return &record, nil
		}
	}
	return nil, NewError(ErrNotFound, "no payment for order "+merchantOrderID)
}
