package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Course is the minimal catalog row the payment subsystem reads. Catalog
// CRUD lives in another service; these rows are consumed read-only here.
type Course struct {
	BaseModel
	Title       string          `json:"title"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4)" json:"price"`
	Currency    string          `gorm:"size:3" json:"currency"`
	RevenueType RevenueType     `gorm:"size:20;default:'course_sale'" json:"revenue_type"`
	TeacherID   uuid.UUID       `gorm:"type:uuid;index" json:"teacher_id"`

	// ProfitOverride, when set, wins over the teacher's default share.
	ProfitOverride *decimal.Decimal `gorm:"type:decimal(8,4)" json:"profit_override"`
}

// Teacher is the content owner a revenue share is payable to.
type Teacher struct {
	BaseModel
	Name string `json:"name"`

	DefaultProfitPercent *decimal.Decimal `gorm:"type:decimal(8,4)" json:"default_profit_percent"`
}

// Product is a non-course catalog item; product sales carry no teacher share.
type Product struct {
	BaseModel
	Title    string          `json:"title"`
	Price    decimal.Decimal `gorm:"type:decimal(18,4)" json:"price"`
	Currency string          `gorm:"size:3" json:"currency"`
}
