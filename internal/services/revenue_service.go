package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/daris/internal/models"
)

// ResolvedPercentage is a profit share with its provenance, so the frozen
// snapshot on a payable records where the number came from.
type ResolvedPercentage struct {
	Source models.PercentageSource `json:"source"`
	Value  decimal.Decimal         `json:"value"`
}

// RevenueService creates and settles teacher payables for course and
// subscription revenue.
type RevenueService struct {
	db       *gorm.DB
	settings *SettingsService
	catalog  CourseCatalog
}

func NewRevenueService(db *gorm.DB, settings *SettingsService, catalog CourseCatalog) *RevenueService {
	return &RevenueService{db: db, settings: settings, catalog: catalog}
}

// ResolvePercentage applies the resolution order: course override, then the
// teacher's default, then the platform default.
func (s *RevenueService) ResolvePercentage(ctx context.Context, course *models.Course, teacher *models.Teacher) (ResolvedPercentage, error) {
	if course.ProfitOverride != nil {
		return ResolvedPercentage{Source: models.PercentageCourseOverride, Value: *course.ProfitOverride}, nil
	}
	if teacher != nil && teacher.DefaultProfitPercent != nil {
		return ResolvedPercentage{Source: models.PercentageTeacherDefault, Value: *teacher.DefaultProfitPercent}, nil
	}
	platform, err := s.settings.PlatformProfitPercent(ctx)
	if err != nil {
		return ResolvedPercentage{}, err
	}
	return ResolvedPercentage{Source: models.PercentagePlatformDefault, Value: platform}, nil
}

// Distribute creates one pending payable per course line of a successful
// payment. It runs inside the success transition's transaction; the unique
// (payment_id, course_id) index makes replays a no-op.
func (s *RevenueService) Distribute(ctx context.Context, tx *gorm.DB, p *models.PaymentRecord) error {
	for _, item := range p.Items {
		if item.CourseID == nil {
			continue
		}

		course, err := s.catalog.Course(ctx, *item.CourseID)
		if err != nil {
			return err
		}
		teacher, err := s.catalog.Teacher(ctx, course.TeacherID)
		if err != nil {
			return err
		}

		resolved, err := s.ResolvePercentage(ctx, course, teacher)
		if err != nil {
			return err
		}

		payable := models.TeacherProfitTransaction{
			TeacherID:        course.TeacherID,
			CourseID:         course.ID,
			PaymentID:        p.ID,
			RevenueType:      item.RevenueType,
			TotalAmount:      item.LineTotal,
			ProfitPercentage: resolved.Value,
			PercentageSource: resolved.Source,
			ProfitAmount:     item.LineTotal.Mul(resolved.Value),
			Currency:         p.Currency,
			Status:           models.ProfitPending,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&payable).Error; err != nil {
			return err
		}
		log.Printf("[Revenue] payable %s created: teacher=%s amount=%s %s (%s %s)",
			payable.ID, payable.TeacherID, payable.ProfitAmount, payable.Currency,
			payable.ProfitPercentage, payable.PercentageSource)
	}
	return nil
}

// MarkPaid settles a pending payable, optionally attaching a transfer proof.
// The update is a compare-and-swap on status so two admins settling the same
// payable cannot both win.
func (s *RevenueService) MarkPaid(ctx context.Context, id uuid.UUID, notes, proofURL string) (*models.TeacherProfitTransaction, error) {
	now := time.Now()
	updates := map[string]any{
		"status":  models.ProfitPaid,
		"paid_at": &now,
	}
	if notes != "" {
		updates["notes"] = notes
	}
	if proofURL != "" {
		updates["payout_proof_url"] = proofURL
	}
	return s.settle(ctx, id, updates)
}

// Cancel voids a payable that is still pending, e.g. on refund.
func (s *RevenueService) Cancel(ctx context.Context, id uuid.UUID, notes string) (*models.TeacherProfitTransaction, error) {
	updates := map[string]any{"status": models.ProfitCancelled}
	if notes != "" {
		updates["notes"] = notes
	}
	return s.settle(ctx, id, updates)
}

func (s *RevenueService) settle(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.TeacherProfitTransaction, error) {
	res := s.db.WithContext(ctx).Model(&models.TeacherProfitTransaction{}).
		Where("id = ? AND status = ?", id, models.ProfitPending).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}

	var payable models.TeacherProfitTransaction
	if err := s.db.WithContext(ctx).First(&payable, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(ErrNotFound, "payable "+id.String())
		}
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, NewError(ErrAlreadySettled, "payable is "+string(payable.Status))
	}
	return &payable, nil
}

// CancelForPayment voids all still-pending payables of a refunded payment.
// Payables already paid out are left for manual follow-up.
func (s *RevenueService) CancelForPayment(tx *gorm.DB, paymentID uuid.UUID) error {
	return tx.Model(&models.TeacherProfitTransaction{}).
		Where("payment_id = ? AND status = ?", paymentID, models.ProfitPending).
		Updates(map[string]any{
			"status": models.ProfitCancelled,
			"notes":  "cancelled: payment refunded",
		}).Error
}
