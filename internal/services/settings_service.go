package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/daris/internal/models"
)

const (
	settingExchangeRates  = "exchange_rates"
	settingPaymentMethods = "payment_methods"
	settingPlatformProfit = "platform_profit_percent"
)

// defaultPlatformProfit applies when no platform share was ever configured.
var defaultPlatformProfit = decimal.NewFromFloat(0.30)

// PaymentMethodConfig describes one manual payment method and its policy.
type PaymentMethodConfig struct {
	Key                string `json:"key"`
	Title              string `json:"title"`
	Instructions       string `json:"instructions"`
	RequiresAttachment bool   `json:"requires_attachment"`
	Enabled            bool   `json:"enabled"`
}

// SettingsService persists configuration values as key/value jsonb rows.
type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Get unmarshals the setting stored under key into out. Missing keys return
// gorm.ErrRecordNotFound.
func (s *SettingsService) Get(ctx context.Context, key string, out any) error {
	var row models.Setting
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error; err != nil {
		return err
	}
	return json.Unmarshal(row.Value, out)
}

// Set upserts the setting stored under key.
func (s *SettingsService) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	row := models.Setting{Key: key, Value: raw}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}

// PaymentMethods returns the configured manual payment methods.
func (s *SettingsService) PaymentMethods(ctx context.Context) ([]PaymentMethodConfig, error) {
	var methods []PaymentMethodConfig
	if err := s.Get(ctx, settingPaymentMethods, &methods); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return methods, nil
}

// PaymentMethod looks up one enabled method by key.
func (s *SettingsService) PaymentMethod(ctx context.Context, key string) (*PaymentMethodConfig, error) {
	methods, err := s.PaymentMethods(ctx)
	if err != nil {
		return nil, err
	}
	for i := range methods {
		if methods[i].Key == key && methods[i].Enabled {
			return &methods[i], nil
		}
	}
	return nil, NewError(ErrValidation, "unknown or disabled payment method: "+key)
}

// SetPaymentMethods replaces the manual payment method configuration.
func (s *SettingsService) SetPaymentMethods(ctx context.Context, methods []PaymentMethodConfig) error {
	return s.Set(ctx, settingPaymentMethods, methods)
}

// PlatformProfitPercent returns the platform-wide default teacher share.
func (s *SettingsService) PlatformProfitPercent(ctx context.Context) (decimal.Decimal, error) {
	var pct decimal.Decimal
	if err := s.Get(ctx, settingPlatformProfit, &pct); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return defaultPlatformProfit, nil
		}
		return decimal.Zero, err
	}
	return pct, nil
}

// SetPlatformProfitPercent updates the platform-wide default teacher share.
func (s *SettingsService) SetPlatformProfitPercent(ctx context.Context, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(1)) {
		return NewError(ErrValidation, "profit percent must be between 0 and 1")
	}
	return s.Set(ctx, settingPlatformProfit, pct)
}
