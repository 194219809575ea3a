package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentGateway identifies which payment channel owns a record.
type PaymentGateway string

const (
	GatewayManual PaymentGateway = "manual"
	GatewayWallet PaymentGateway = "wallet"
	GatewayHosted PaymentGateway = "hosted"
)

// PaymentStatus is the closed status enum for payment records.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSuccess    PaymentStatus = "success"
	PaymentDelivered  PaymentStatus = "delivered"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
)

// PaymentRecord stores a single payment attempt. Records are never deleted;
// cancellation is a status, not a delete. Status is written only by the
// state machine.
type PaymentRecord struct {
	BaseModel
	MerchantOrderID string          `gorm:"uniqueIndex;size:64" json:"merchant_order_id"`
	Gateway         PaymentGateway  `gorm:"size:20;index" json:"gateway"`
	Method          string          `gorm:"size:50" json:"method"`
	Status          PaymentStatus   `gorm:"size:20;index" json:"status"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4)" json:"amount"`
	Currency        string          `gorm:"size:3" json:"currency"`

	// RateSnapshot holds the exchange rate table captured at creation time.
	// Reports on settled payments read this snapshot, never the live table.
	RateSnapshot []byte `gorm:"type:jsonb" json:"-"`

	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `gorm:"index" json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerAddress string `json:"customer_address"`

	ProofURL    string `json:"proof_url"`
	AdminNotes  string `json:"admin_notes"`
	ExternalRef string `gorm:"index" json:"external_ref"`

	CartSessionID *uuid.UUID `gorm:"type:uuid;index" json:"cart_session_id"`

	Items   []PaymentLineItem    `json:"items,omitempty"`
	History []PaymentStatusEntry `json:"history,omitempty"`
}

// PaymentLineItem is one purchased line on a payment record.
type PaymentLineItem struct {
	BaseModel
	PaymentRecordID uuid.UUID       `gorm:"type:uuid;index" json:"payment_record_id"`
	CourseID        *uuid.UUID      `gorm:"type:uuid" json:"course_id"`
	ProductID       *uuid.UUID      `gorm:"type:uuid" json:"product_id"`
	Title           string          `json:"title"`
	RevenueType     RevenueType     `gorm:"size:20" json:"revenue_type"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4)" json:"unit_price"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(18,4)" json:"line_total"`
}

// PaymentStatusEntry is one append-only row of a record's status history.
// Rows are only ever inserted, never updated or removed.
type PaymentStatusEntry struct {
	BaseModel
	PaymentRecordID uuid.UUID     `gorm:"type:uuid;index" json:"payment_record_id"`
	Status          PaymentStatus `gorm:"size:20" json:"status"`
	Actor           string        `gorm:"size:100" json:"actor"`
	Note            string        `json:"note"`
}
