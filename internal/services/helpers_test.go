package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/daris/internal/database"
	"github.com/example/daris/internal/models"
)

// testEnv wires the full service graph onto an in-memory database with a
// seeded rate table of USD:1, EGP:50.
type testEnv struct {
	db       *gorm.DB
	settings *SettingsService
	currency *CurrencyService
	catalog  *CatalogService
	ledger   *LedgerService
	revenue  *RevenueService
	carts    *CartService
	sm       *StateMachine
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)

	settings := NewSettingsService(db)
	currency := NewCurrencyService(settings)
	catalog := NewCatalogService(db)
	ledger := NewLedgerService(db, currency)
	revenue := NewRevenueService(db, settings, catalog)
	carts := NewCartService(db, nil)
	sm := NewStateMachine(db, ledger, revenue, carts, nil)

	_, err := currency.UpdateRates(context.Background(), "USD", map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
		"EGP": decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	return &testEnv{
		db:       db,
		settings: settings,
		currency: currency,
		catalog:  catalog,
		ledger:   ledger,
		revenue:  revenue,
		carts:    carts,
		sm:       sm,
	}
}

// seedCourse creates a teacher and a 10 USD course owned by them.
func (e *testEnv) seedCourse(t *testing.T, override, teacherDefault *decimal.Decimal) (*models.Course, *models.Teacher) {
	t.Helper()

	teacher := models.Teacher{Name: "Huda", DefaultProfitPercent: teacherDefault}
	require.NoError(t, e.db.Create(&teacher).Error)

	course := models.Course{
		Title:          "Intro to Tajweed",
		Price:          decimal.NewFromInt(10),
		Currency:       "USD",
		RevenueType:    models.RevenueCourseSale,
		TeacherID:      teacher.ID,
		ProfitOverride: override,
	}
	require.NoError(t, e.db.Create(&course).Error)

	return &course, &teacher
}

// createPayment builds a pending one-line payment for the course via the
// shared record builder, the same path every gateway takes.
func (e *testEnv) createPayment(t *testing.T, gateway models.PaymentGateway, currency string, course *models.Course, extra func(*CreatePaymentInput)) *models.PaymentRecord {
	t.Helper()

	input := CreatePaymentInput{
		Currency: currency,
		Billing:  BillingInfo{Name: "Sara", Email: "sara@example.com"},
		Items:    []LineItemRequest{{CourseID: &course.ID, Quantity: 1}},
	}
	if extra != nil {
		extra(&input)
	}

	builder := newPaymentBuilder(e.db, e.currency, e.catalog)
	record, err := builder.buildRecord(context.Background(), gateway, input)
	require.NoError(t, err)
	return record
}

func (e *testEnv) countFinanceRows(t *testing.T, source models.FinanceSource) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.FinanceTransaction{}).
		Where("source = ?", source).Count(&count).Error)
	return count
}
