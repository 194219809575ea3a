package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/daris/internal/models"
	"github.com/example/daris/internal/services"
)

// PaymentHandler manages customer-facing payment endpoints.
type PaymentHandler struct {
	db       *gorm.DB
	gateways services.GatewayRegistry
	sm       *services.StateMachine
}

func NewPaymentHandler(db *gorm.DB, gateways services.GatewayRegistry, sm *services.StateMachine) *PaymentHandler {
	return &PaymentHandler{db: db, gateways: gateways, sm: sm}
}

type createPaymentRequest struct {
	Gateway string `json:"gateway"`
	services.CreatePaymentInput
}

// CreatePayment starts a payment on the selected gateway and returns either
// a redirect URL or transfer instructions.
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	gateway, err := h.gateways.Get(models.PaymentGateway(req.Gateway))
	if err != nil {
		return services.WriteError(c, err)
	}

	result, err := gateway.CreatePayment(c.Context(), req.CreatePaymentInput)
	if err != nil {
		return services.WriteError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"payment_id":        result.Payment.ID,
			"merchant_order_id": result.Payment.MerchantOrderID,
			"status":            result.Payment.Status,
			"amount":            result.Payment.Amount,
			"currency":          result.Payment.Currency,
			"redirect_url":      result.RedirectURL,
			"instructions":      result.Instructions,
		},
	})
}

// GetPayment returns the customer view of a payment with a localized status
// message.
func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	orderID := strings.TrimSpace(c.Params("orderId"))
	if orderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "order id is required")
	}

	var record models.PaymentRecord
	if err := h.db.Preload("Items").Preload("History").
		First(&record, "merchant_order_id = ?", orderID).Error; err != nil {
		return services.WriteError(c, services.NewError(services.ErrNotFound, "payment "+orderID))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"merchant_order_id": record.MerchantOrderID,
			"status":            record.Status,
			"amount":            record.Amount,
			"currency":          record.Currency,
			"items":             record.Items,
			"message":           customerMessage(&record),
		},
	})
}

// CancelPayment lets the customer abandon a payment that has not started
// processing. Once funds are in flight, only a refund can reverse it.
func (h *PaymentHandler) CancelPayment(c *fiber.Ctx) error {
	orderID := strings.TrimSpace(c.Params("orderId"))

	var record models.PaymentRecord
	if err := h.db.First(&record, "merchant_order_id = ?", orderID).Error; err != nil {
		return services.WriteError(c, services.NewError(services.ErrNotFound, "payment "+orderID))
	}

	if record.Status != models.PaymentPending {
		return services.WriteError(c, services.NewError(services.ErrInvalidTransition,
			"only pending payments can be cancelled"))
	}

	updated, err := h.sm.Transition(c.Context(), record.ID, models.PaymentPending, models.PaymentCancelled,
		"customer", "cancelled by customer")
	if err != nil {
		return services.WriteError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"merchant_order_id": updated.MerchantOrderID,
			"status":            updated.Status,
			"message":           customerMessage(updated),
		},
	})
}

// customerMessage distinguishes "still processing" from "failed, payment not
// taken" from "failed, contact support" for gateways that were ambiguous
// about funds movement.
func customerMessage(p *models.PaymentRecord) fiber.Map {
	switch p.Status {
	case models.PaymentPending:
		return fiber.Map{
			"ar": "بانتظار إتمام الدفع",
			"en": "Awaiting payment",
		}
	case models.PaymentProcessing:
		return fiber.Map{
			"ar": "الدفع قيد المعالجة، حاول الاستعلام لاحقاً",
			"en": "Payment is still processing, check back later",
		}
	case models.PaymentSuccess, models.PaymentDelivered:
		return fiber.Map{
			"ar": "تم الدفع بنجاح",
			"en": "Payment completed successfully",
		}
	case models.PaymentRefunded:
		return fiber.Map{
			"ar": "تم استرداد المبلغ",
			"en": "Payment was refunded",
		}
	case models.PaymentCancelled:
		return fiber.Map{
			"ar": "تم إلغاء عملية الدفع ولم يتم خصم أي مبلغ",
			"en": "Payment was cancelled, no money was taken",
		}
	case models.PaymentFailed:
		if wasProcessing(p) {
			return fiber.Map{
				"ar": "فشل الدفع، يرجى التواصل مع الدعم للتأكد من عدم الخصم",
				"en": "Payment failed, contact support to confirm no money was taken",
			}
		}
		return fiber.Map{
			"ar": "فشل الدفع ولم يتم خصم أي مبلغ",
			"en": "Payment failed, no money was taken",
		}
	}
	return fiber.Map{"ar": "حالة غير معروفة", "en": "Unknown status"}
}

// wasProcessing reports whether the record ever reached processing, i.e.
// funds may have been in flight at the gateway.
func wasProcessing(p *models.PaymentRecord) bool {
	for _, entry := range p.History {
		if entry.Status == models.PaymentProcessing {
			return true
		}
	}
	return false
}
