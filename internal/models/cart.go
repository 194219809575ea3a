package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartStatus tracks the lifecycle of an in-progress checkout.
type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartAbandoned CartStatus = "abandoned"
	CartConverted CartStatus = "converted"
	CartRecovered CartStatus = "recovered"
)

// CartSession records an in-progress checkout. A scheduled scan flips stale
// active sessions to abandoned; a successful payment links back and converts
// the session exactly once.
type CartSession struct {
	BaseModel
	Status         CartStatus      `gorm:"size:20;index" json:"status"`
	CustomerName   string          `json:"customer_name"`
	CustomerEmail  string          `gorm:"index" json:"customer_email"`
	CustomerPhone  string          `json:"customer_phone"`
	Items          []byte          `gorm:"type:jsonb" json:"items"`
	Currency       string          `gorm:"size:3" json:"currency"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(18,4)" json:"subtotal"`
	LastActivityAt time.Time       `gorm:"index" json:"last_activity_at"`
	ReminderSentAt *time.Time      `json:"reminder_sent_at"`

	ConvertedPaymentID *uuid.UUID `gorm:"type:uuid" json:"converted_payment_id"`
}

// CartItem is the JSON shape stored in CartSession.Items.
type CartItem struct {
	CourseID  *uuid.UUID      `json:"course_id,omitempty"`
	ProductID *uuid.UUID      `json:"product_id,omitempty"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
