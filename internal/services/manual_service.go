package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/daris/internal/models"
)

// ManualGateway handles staff-moderated bank and wallet transfers. There is
// no external callback: an admin verifies the proof and moves the record
// through the state machine by hand.
type ManualGateway struct {
	builder  *paymentBuilder
	settings *SettingsService
}

func NewManualGateway(db *gorm.DB, currency *CurrencyService, catalog CourseCatalog, settings *SettingsService) *ManualGateway {
	return &ManualGateway{
		builder:  newPaymentBuilder(db, currency, catalog),
		settings: settings,
	}
}

func (g *ManualGateway) Name() models.PaymentGateway {
	return models.GatewayManual
}

// CreatePayment validates the selected method's policy before any record
// exists: a method with requires_attachment set rejects proof-less requests
// with ProofRequired.
func (g *ManualGateway) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error) {
	if input.Method == "" {
		return nil, NewError(ErrValidation, "manual payments require a method")
	}

	method, err := g.settings.PaymentMethod(ctx, input.Method)
	if err != nil {
		return nil, err
	}

	if method.RequiresAttachment && input.ProofURL == "" {
		return nil, NewError(ErrProofRequired, "method "+method.Key)
	}

	record, err := g.builder.buildRecord(ctx, models.GatewayManual, input)
	if err != nil {
		return nil, err
	}

	return &CreatePaymentResult{
		Payment:      record,
		Instructions: method.Instructions,
	}, nil
}
