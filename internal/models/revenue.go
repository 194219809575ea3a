package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RevenueType classifies what a sale was for.
type RevenueType string

const (
	RevenueCourseSale   RevenueType = "course_sale"
	RevenueSubscription RevenueType = "subscription"
	RevenueProductSale  RevenueType = "product_sale"
)

// PercentageSource records where a frozen profit percentage came from.
type PercentageSource string

const (
	PercentageCourseOverride  PercentageSource = "course_override"
	PercentageTeacherDefault  PercentageSource = "teacher_default"
	PercentagePlatformDefault PercentageSource = "platform_default"
)

// ProfitStatus is the teacher payable lifecycle.
type ProfitStatus string

const (
	ProfitPending   ProfitStatus = "pending"
	ProfitPaid      ProfitStatus = "paid"
	ProfitCancelled ProfitStatus = "cancelled"
)

// TeacherProfitTransaction is one payable owed to a teacher for a course or
// subscription sale. ProfitPercentage is frozen at creation time: changing a
// teacher's configured share later never rewrites history.
type TeacherProfitTransaction struct {
	BaseModel
	TeacherID uuid.UUID `gorm:"type:uuid;index" json:"teacher_id"`
	CourseID  uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_profit_payment_course" json:"course_id"`
	PaymentID uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_profit_payment_course" json:"payment_id"`

	RevenueType      RevenueType      `gorm:"size:20" json:"revenue_type"`
	TotalAmount      decimal.Decimal  `gorm:"type:decimal(18,4)" json:"total_amount"`
	ProfitPercentage decimal.Decimal  `gorm:"type:decimal(8,4)" json:"profit_percentage"`
	PercentageSource PercentageSource `gorm:"size:30" json:"percentage_source"`
	ProfitAmount     decimal.Decimal  `gorm:"type:decimal(18,4)" json:"profit_amount"`
	Currency         string           `gorm:"size:3" json:"currency"`

	Status         ProfitStatus `gorm:"size:20;index" json:"status"`
	PaidAt         *time.Time   `json:"paid_at"`
	PayoutProofURL string       `json:"payout_proof_url"`
	Notes          string       `json:"notes"`
}
