package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/daris/internal/models"
)

// ReferenceCurrency is the common denominator for cross-currency reporting.
const ReferenceCurrency = "USD"

// RateTable is a versioned set of exchange rates relative to the reference
// currency. Consumers receive value copies, never a live mutable pointer.
type RateTable struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	Version   int                        `json:"version"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// Convert moves amount between currencies through the reference currency:
// amount / rate[from] * rate[to].
func (t *RateTable) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := t.Rates[from]
	if !ok || fromRate.IsZero() {
		return decimal.Zero, NewError(ErrValidation, "unknown currency: "+from)
	}
	toRate, ok := t.Rates[to]
	if !ok || toRate.IsZero() {
		return decimal.Zero, NewError(ErrValidation, "unknown currency: "+to)
	}
	return amount.Div(fromRate).Mul(toRate), nil
}

// CurrencyService owns the exchange rate table. The table only changes via
// an explicit admin update; payments capture a snapshot at creation time.
type CurrencyService struct {
	settings *SettingsService
}

func NewCurrencyService(settings *SettingsService) *CurrencyService {
	return &CurrencyService{settings: settings}
}

// Current loads the live rate table. A missing table falls back to a
// reference-only table so bootstrap installs stay functional.
func (s *CurrencyService) Current(ctx context.Context) (RateTable, error) {
	var table RateTable
	if err := s.settings.Get(ctx, settingExchangeRates, &table); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RateTable{
				Base:  ReferenceCurrency,
				Rates: map[string]decimal.Decimal{ReferenceCurrency: decimal.NewFromInt(1)},
			}, nil
		}
		return RateTable{}, err
	}
	return table, nil
}

// Convert converts amount using the live rate table.
func (s *CurrencyService) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	table, err := s.Current(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return table.Convert(amount, from, to)
}

// UpdateRates replaces the rate table atomically and bumps its version.
func (s *CurrencyService) UpdateRates(ctx context.Context, base string, rates map[string]decimal.Decimal) (RateTable, error) {
	if base == "" {
		return RateTable{}, NewError(ErrValidation, "base currency is required")
	}
	// The caller keeps ownership of its map; the stored table gets a copy.
	copied := make(map[string]decimal.Decimal, len(rates)+1)
	for code, rate := range rates {
		if rate.IsZero() || rate.IsNegative() {
			return RateTable{}, NewError(ErrValidation, "rate for "+code+" must be positive")
		}
		copied[code] = rate
	}
	if _, ok := copied[ReferenceCurrency]; !ok {
		copied[ReferenceCurrency] = decimal.NewFromInt(1)
	}
	if _, ok := copied[base]; !ok {
		return RateTable{}, NewError(ErrValidation, "rates must include the base currency "+base)
	}

	current, err := s.Current(ctx)
	if err != nil {
		return RateTable{}, err
	}

	table := RateTable{
		Base:      base,
		Rates:     copied,
		Version:   current.Version + 1,
		UpdatedAt: time.Now(),
	}
	if err := s.settings.Set(ctx, settingExchangeRates, table); err != nil {
		return RateTable{}, err
	}
	return table, nil
}

// Snapshot serializes the live table for storage on a new payment record.
func (s *CurrencyService) Snapshot(ctx context.Context) ([]byte, error) {
	table, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(table)
}

// AmountInUSD computes a payment's reference-currency amount from the rate
// snapshot captured at its creation, so settled reports survive later rate
// changes.
func (s *CurrencyService) AmountInUSD(p *models.PaymentRecord) (decimal.Decimal, error) {
	var table RateTable
	if len(p.RateSnapshot) == 0 {
		return decimal.Zero, NewError(ErrValidation, "payment has no rate snapshot")
	}
	if err := json.Unmarshal(p.RateSnapshot, &table); err != nil {
		return decimal.Zero, err
	}
	return table.Convert(p.Amount, p.Currency, ReferenceCurrency)
}
