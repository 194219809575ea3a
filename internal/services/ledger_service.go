package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/daris/internal/models"
)

// LedgerService aggregates payments and manual entries into finance
// transactions for reporting.
type LedgerService struct {
	db       *gorm.DB
	currency *CurrencyService
}

func NewLedgerService(db *gorm.DB, currency *CurrencyService) *LedgerService {
	return &LedgerService{db: db, currency: currency}
}

// RecordFromPayment books the income entry for a successful payment. The
// unique (source, payment_id) index plus OnConflict-DoNothing makes replays
// a no-op, so a re-delivered webhook cannot double-count revenue.
func (s *LedgerService) RecordFromPayment(tx *gorm.DB, p *models.PaymentRecord) error {
	amountUSD, err := s.currency.AmountInUSD(p)
	if err != nil {
		return err
	}

	entry := models.FinanceTransaction{
		Type:      models.FinanceIncome,
		Category:  "sales",
		Amount:    p.Amount,
		Currency:  p.Currency,
		AmountUSD: amountUSD,
		Source:    models.SourcePaymentAuto,
		PaymentID: &p.ID,
		Notes:     "payment " + p.MerchantOrderID,
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
}

// RecordRefund books the reversing expense entry for a refunded payment,
// with the same replay guard as RecordFromPayment.
func (s *LedgerService) RecordRefund(tx *gorm.DB, p *models.PaymentRecord) error {
	amountUSD, err := s.currency.AmountInUSD(p)
	if err != nil {
		return err
	}

	entry := models.FinanceTransaction{
		Type:      models.FinanceExpense,
		Category:  "refunds",
		Amount:    p.Amount,
		Currency:  p.Currency,
		AmountUSD: amountUSD,
		Source:    models.SourceRefundAuto,
		PaymentID: &p.ID,
		Notes:     "refund of payment " + p.MerchantOrderID,
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
}

// ManualEntryInput is an admin-entered bookkeeping row.
type ManualEntryInput struct {
	Type     models.FinanceType `json:"type"`
	Category string             `json:"category"`
	Amount   decimal.Decimal    `json:"amount"`
	Currency string             `json:"currency"`
	Notes    string             `json:"notes"`
}

// RecordManual books a manual income/expense/adjustment entry.
func (s *LedgerService) RecordManual(ctx context.Context, input ManualEntryInput) (*models.FinanceTransaction, error) {
	switch input.Type {
	case models.FinanceIncome, models.FinanceExpense, models.FinanceAdjustment:
	default:
		return nil, NewError(ErrValidation, "unknown transaction type")
	}
	if input.Amount.IsZero() || input.Amount.IsNegative() {
		return nil, NewError(ErrValidation, "amount must be positive")
	}
	if input.Currency == "" {
		return nil, NewError(ErrValidation, "currency is required")
	}

	amountUSD, err := s.currency.Convert(ctx, input.Amount, input.Currency, ReferenceCurrency)
	if err != nil {
		return nil, err
	}

	entry := models.FinanceTransaction{
		Type:      input.Type,
		Category:  input.Category,
		Amount:    input.Amount,
		Currency:  input.Currency,
		AmountUSD: amountUSD,
		Source:    models.SourceManual,
		Notes:     input.Notes,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Summary is the aggregate view of the ledger in one display currency.
type Summary struct {
	Currency     string          `json:"currency"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`
}

// Summarize totals the ledger over a date range, converting stored USD
// amounts to the display currency with the current rate table. Unlike
// settled-payment snapshots this is a live report.
func (s *LedgerService) Summarize(ctx context.Context, from, to *time.Time, displayCurrency string) (*Summary, error) {
	if displayCurrency == "" {
		displayCurrency = ReferenceCurrency
	}

	query := s.db.WithContext(ctx).Model(&models.FinanceTransaction{})
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	var rows []models.FinanceTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	incomeUSD := decimal.Zero
	expenseUSD := decimal.Zero
	for _, row := range rows {
		switch row.Type {
		case models.FinanceIncome:
			incomeUSD = incomeUSD.Add(row.AmountUSD)
		case models.FinanceExpense:
			expenseUSD = expenseUSD.Add(row.AmountUSD)
		case models.FinanceAdjustment:
			incomeUSD = incomeUSD.Add(row.AmountUSD)
		}
	}

	income, err := s.currency.Convert(ctx, incomeUSD, ReferenceCurrency, displayCurrency)
	if err != nil {
		return nil, err
	}
	expense, err := s.currency.Convert(ctx, expenseUSD, ReferenceCurrency, displayCurrency)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Currency:     displayCurrency,
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
	}, nil
}

// Export writes the finance transactions in a date range to an xlsx workbook
// for offline analysis.
func (s *LedgerService) Export(ctx context.Context, from, to *time.Time) (*excelize.File, error) {
	query := s.db.WithContext(ctx).Model(&models.FinanceTransaction{}).Order("created_at asc")
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	var rows []models.FinanceTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Transactions"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Date", "Type", "Category", "Amount", "Currency", "Amount USD", "Source", "Payment ID", "Notes"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for rowIdx, row := range rows {
		paymentID := ""
		if row.PaymentID != nil {
			paymentID = row.PaymentID.String()
		}
		values := []any{
			row.ID.String(),
			row.CreatedAt.Format(time.RFC3339),
			string(row.Type),
			row.Category,
			row.Amount.String(),
			row.Currency,
			row.AmountUSD.String(),
			string(row.Source),
			paymentID,
			row.Notes,
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("export cell %s: %w", cell, err)
			}
		}
	}

	return f, nil
}
