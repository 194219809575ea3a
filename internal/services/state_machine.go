package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/daris/internal/models"
)

// transitionTable is the closed set of valid (from, to) status pairs. Any
// pair not present is rejected with InvalidTransition before touching the
// record.
var transitionTable = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending:    {models.PaymentProcessing, models.PaymentFailed, models.PaymentCancelled},
	models.PaymentProcessing: {models.PaymentSuccess, models.PaymentFailed, models.PaymentRefunded},
	models.PaymentSuccess:    {models.PaymentDelivered, models.PaymentRefunded},
	models.PaymentDelivered:  {models.PaymentRefunded},
	models.PaymentFailed:     {models.PaymentPending},
	models.PaymentCancelled:  {models.PaymentPending},
	models.PaymentRefunded:   {},
}

// CanTransition reports whether from→to is a valid single step.
func CanTransition(from, to models.PaymentStatus) bool {
	for _, next := range transitionTable[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionPath returns the shortest valid status sequence from→to,
// excluding from itself, or nil when target is unreachable.
func TransitionPath(from, to models.PaymentStatus) []models.PaymentStatus {
	if from == to {
		return nil
	}
	type node struct {
		status models.PaymentStatus
		path   []models.PaymentStatus
	}
	visited := map[models.PaymentStatus]bool{from: true}
	queue := []node{{status: from}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range transitionTable[current.status] {
			if visited[next] {
				continue
			}
			path := append(append([]models.PaymentStatus{}, current.path...), next)
			if next == to {
				return path
			}
			visited[next] = true
			queue = append(queue, node{status: next, path: path})
		}
	}
	return nil
}

// StateMachine is the single authority over payment status. Every mutation
// of PaymentRecord.Status goes through Transition, regardless of caller.
type StateMachine struct {
	db       *gorm.DB
	ledger   *LedgerService
	revenue  *RevenueService
	carts    *CartService
	telegram *TelegramService
}

func NewStateMachine(db *gorm.DB, ledger *LedgerService, revenue *RevenueService, carts *CartService, telegram *TelegramService) *StateMachine {
	return &StateMachine{db: db, ledger: ledger, revenue: revenue, carts: carts, telegram: telegram}
}

// Transition applies one validated status step as a compare-and-swap: the
// update only lands if the stored status still equals observed, otherwise
// the caller gets StaleState and the record is untouched. Each applied step
// appends exactly one history entry. Entry into success fires the ledger,
// revenue distribution and cart linkage side effects inside the same
// transaction; their own uniqueness guards keep replays harmless.
func (m *StateMachine) Transition(ctx context.Context, paymentID uuid.UUID, observed, target models.PaymentStatus, actor, note string) (*models.PaymentRecord, error) {
	if !CanTransition(observed, target) {
		return nil, NewError(ErrInvalidTransition, fmt.Sprintf("%s -> %s", observed, target))
	}

	var notifySuccess bool
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PaymentRecord{}).
			Where("id = ? AND status = ?", paymentID, observed).
			Update("status", target)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current models.PaymentRecord
			if err := tx.First(&current, "id = ?", paymentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return NewError(ErrNotFound, "payment "+paymentID.String())
				}
				return err
			}
			return NewError(ErrStaleState,
				fmt.Sprintf("expected %s, record is %s", observed, current.Status))
		}

		entry := models.PaymentStatusEntry{
			PaymentRecordID: paymentID,
			Status:          target,
			Actor:           actor,
			Note:            note,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		switch target {
		case models.PaymentSuccess:
			record, err := loadPayment(tx, paymentID)
			if err != nil {
				return err
			}
			if err := m.ledger.RecordFromPayment(tx, record); err != nil {
				return err
			}
			if err := m.revenue.Distribute(ctx, tx, record); err != nil {
				return err
			}
			if record.CartSessionID != nil {
				if err := m.carts.LinkConversion(ctx, tx, *record.CartSessionID, record.ID); err != nil {
					return err
				}
			}
			notifySuccess = true
		case models.PaymentRefunded:
			record, err := loadPayment(tx, paymentID)
			if err != nil {
				return err
			}
			if err := m.ledger.RecordRefund(tx, record); err != nil {
				return err
			}
			if err := m.revenue.CancelForPayment(tx, record.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	record, err := loadPayment(m.db.WithContext(ctx), paymentID)
	if err != nil {
		return nil, err
	}

	log.Printf("[StateMachine] payment %s: %s -> %s by %s", record.MerchantOrderID, observed, target, actor)

	if notifySuccess && m.telegram != nil {
		notified := *record
		go func() {
			if err := m.telegram.NotifyPaymentSuccess(&notified); err != nil {
				log.Printf("[StateMachine] success notification failed for %s: %v", notified.MerchantOrderID, err)
			}

			var payables []models.TeacherProfitTransaction
			if err := m.db.Where("payment_id = ?", notified.ID).Find(&payables).Error; err != nil {
				log.Printf("[StateMachine] payable lookup failed for %s: %v", notified.MerchantOrderID, err)
				return
			}
			for i := range payables {
				if err := m.telegram.NotifyPayableCreated(&payables[i]); err != nil {
					log.Printf("[StateMachine] payable notification failed for %s: %v", notified.MerchantOrderID, err)
				}
			}
		}()
	}

	return record, nil
}

// Advance walks the record from its current status to target one validated
// CAS step at a time. A record already at target is a no-op (applied=false),
// which is how duplicate webhook deliveries stay harmless.
func (m *StateMachine) Advance(ctx context.Context, paymentID uuid.UUID, target models.PaymentStatus, actor, note string) (*models.PaymentRecord, bool, error) {
	record, err := loadPayment(m.db.WithContext(ctx), paymentID)
	if err != nil {
		return nil, false, err
	}

	if record.Status == target {
		return record, false, nil
	}

	path := TransitionPath(record.Status, target)
	if path == nil {
		return nil, false, NewError(ErrInvalidTransition,
			fmt.Sprintf("%s is unreachable from %s", target, record.Status))
	}

	current := record.Status
	for _, step := range path {
		stepNote := note
		if step != target {
			stepNote = "auto-advance toward " + string(target)
		}
		record, err = m.Transition(ctx, paymentID, current, step, actor, stepNote)
		if err != nil {
			return nil, false, err
		}
		current = step
	}
	return record, true, nil
}

func loadPayment(db *gorm.DB, id uuid.UUID) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := db.Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(ErrNotFound, "payment "+id.String())
		}
		return nil, err
	}
	return &record, nil
}
