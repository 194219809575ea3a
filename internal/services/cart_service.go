package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/daris/internal/models"
)

// CartService tracks in-progress checkouts, flips stale ones to abandoned
// and links sessions to the payment that converted them.
type CartService struct {
	db       *gorm.DB
	telegram *TelegramService
}

func NewCartService(db *gorm.DB, telegram *TelegramService) *CartService {
	return &CartService{db: db, telegram: telegram}
}

// TrackInput creates or refreshes a cart session.
type TrackInput struct {
	SessionID     *uuid.UUID        `json:"session_id"`
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	CustomerPhone string            `json:"customer_phone"`
	Currency      string            `json:"currency"`
	Items         []models.CartItem `json:"items"`
}

// Track upserts a cart session and stamps its activity time. Sessions in a
// terminal state are left alone; the caller gets a fresh one instead.
func (s *CartService) Track(ctx context.Context, input TrackInput) (*models.CartSession, error) {
	if len(input.Items) == 0 {
		return nil, NewError(ErrValidation, "cart has no items")
	}

	raw, err := json.Marshal(input.Items)
	if err != nil {
		return nil, err
	}
	subtotal := decimal.Zero
	for _, item := range input.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if input.SessionID != nil {
		var session models.CartSession
		err := s.db.WithContext(ctx).First(&session, "id = ?", *input.SessionID).Error
		if err == nil && (session.Status == models.CartActive || session.Status == models.CartAbandoned) {
			updates := map[string]any{
				"items":            raw,
				"subtotal":         subtotal,
				"currency":         input.Currency,
				"status":           models.CartActive,
				"last_activity_at": time.Now(),
			}
			if err := s.db.WithContext(ctx).Model(&session).Updates(updates).Error; err != nil {
				return nil, err
			}
			session.Status = models.CartActive
			session.Items = raw
			session.Subtotal = subtotal
			return &session, nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	session := models.CartSession{
		Status:         models.CartActive,
		CustomerName:   input.CustomerName,
		CustomerEmail:  input.CustomerEmail,
		CustomerPhone:  input.CustomerPhone,
		Items:          raw,
		Currency:       input.Currency,
		Subtotal:       subtotal,
		LastActivityAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// CheckAbandonment flips active sessions idle longer than threshold to
// abandoned. This is a scheduled batch operation, not a request side effect.
func (s *CartService) CheckAbandonment(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().Add(-threshold)
	res := s.db.WithContext(ctx).Model(&models.CartSession{}).
		Where("status = ? AND last_activity_at < ?", models.CartActive, cutoff).
		Update("status", models.CartAbandoned)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[Cart] marked %d sessions abandoned", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// SendReminder notifies about an abandoned cart and stamps the session so a
// later conversion counts as recovered rather than converted.
func (s *CartService) SendReminder(ctx context.Context, id uuid.UUID) (*models.CartSession, error) {
	var session models.CartSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(ErrNotFound, "cart session "+id.String())
		}
		return nil, err
	}
	if session.Status != models.CartAbandoned {
		return nil, NewError(ErrValidation, "reminders only apply to abandoned sessions")
	}

	if s.telegram != nil {
		if err := s.telegram.NotifyCartReminder(session); err != nil {
			log.Printf("[Cart] reminder notification failed for %s: %v", id, err)
		}
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&session).
		Update("reminder_sent_at", &now).Error; err != nil {
		return nil, err
	}
	session.ReminderSentAt = &now
	return &session, nil
}

// LinkConversion marks a session converted by the given payment. Calling it
// again with the same ids is a no-op. A session that was abandoned and
// reminded converts to recovered, preserving the distinction for reporting.
func (s *CartService) LinkConversion(ctx context.Context, tx *gorm.DB, sessionID, paymentID uuid.UUID) error {
	var session models.CartSession
	if err := tx.WithContext(ctx).First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewError(ErrNotFound, "cart session "+sessionID.String())
		}
		return err
	}

	if session.ConvertedPaymentID != nil {
		return nil
	}

	target := models.CartConverted
	if session.Status == models.CartAbandoned && session.ReminderSentAt != nil {
		target = models.CartRecovered
	}

	return tx.WithContext(ctx).Model(&session).Updates(map[string]any{
		"status":               target,
		"converted_payment_id": paymentID,
	}).Error
}
