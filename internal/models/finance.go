package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinanceType is the bookkeeping direction of a transaction.
type FinanceType string

const (
	FinanceIncome     FinanceType = "income"
	FinanceExpense    FinanceType = "expense"
	FinanceAdjustment FinanceType = "adjustment"
)

// FinanceSource records how a transaction entered the ledger.
type FinanceSource string

const (
	SourceManual      FinanceSource = "manual"
	SourcePaymentAuto FinanceSource = "payment_auto"
	SourceRefundAuto  FinanceSource = "refund_auto"
)

// FinanceTransaction is one ledger entry. The unique index on
// (source, payment_id) guarantees a replayed webhook can never produce a
// second payment_auto income row for the same payment.
type FinanceTransaction struct {
	BaseModel
	Type      FinanceType     `gorm:"size:20;index" json:"type"`
	Category  string          `gorm:"size:50" json:"category"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4)" json:"amount"`
	Currency  string          `gorm:"size:3" json:"currency"`
	AmountUSD decimal.Decimal `gorm:"type:decimal(18,4)" json:"amount_usd"`
	Source    FinanceSource   `gorm:"size:20;uniqueIndex:idx_finance_source_payment" json:"source"`
	PaymentID *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_finance_source_payment" json:"payment_id"`
	Notes     string          `json:"notes"`
}
