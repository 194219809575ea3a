package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/daris/internal/models"
)

func TestResolvePercentageOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	override := decimal.NewFromFloat(0.50)
	teacherDefault := decimal.NewFromFloat(0.40)

	course, teacher := env.seedCourse(t, &override, &teacherDefault)
	resolved, err := env.revenue.ResolvePercentage(ctx, course, teacher)
	require.NoError(t, err)
	assert.Equal(t, models.PercentageCourseOverride, resolved.Source)
	assert.True(t, resolved.Value.Equal(override))

	course.ProfitOverride = nil
	resolved, err = env.revenue.ResolvePercentage(ctx, course, teacher)
	require.NoError(t, err)
	assert.Equal(t, models.PercentageTeacherDefault, resolved.Source)
	assert.True(t, resolved.Value.Equal(teacherDefault))

	teacher.DefaultProfitPercent = nil
	resolved, err = env.revenue.ResolvePercentage(ctx, course, teacher)
	require.NoError(t, err)
	assert.Equal(t, models.PercentagePlatformDefault, resolved.Source)
	assert.True(t, resolved.Value.Equal(decimal.NewFromFloat(0.30)))
}

func TestResolvePercentageUsesConfiguredPlatformShare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.settings.SetPlatformProfitPercent(ctx, decimal.NewFromFloat(0.25)))

	course, teacher := env.seedCourse(t, nil, nil)
	resolved, err := env.revenue.ResolvePercentage(ctx, course, teacher)
	require.NoError(t, err)
	assert.Equal(t, models.PercentagePlatformDefault, resolved.Source)
	assert.True(t, resolved.Value.Equal(decimal.NewFromFloat(0.25)))
}

func TestFrozenPercentageSurvivesConfigChanges(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil, nil)
	record := env.createPayment(t, models.GatewayManual, "EGP", course, nil)
	ctx := context.Background()

	_, _, err := env.sm.Advance(ctx, record.ID, models.PaymentSuccess, "admin:root", "")
	require.NoError(t, err)

	// Raising the platform share afterwards must not rewrite the payable.
	require.NoError(t, env.settings.SetPlatformProfitPercent(ctx, decimal.NewFromFloat(0.90)))

	var payable models.TeacherProfitTransaction
	require.NoError(t, env.db.First(&payable, "payment_id = ?", record.ID).Error)
	assert.True(t, payable.ProfitPercentage.Equal(decimal.NewFromFloat(0.30)))
	assert.True(t, payable.ProfitAmount.Equal(decimal.NewFromInt(150)))
}

func TestDistributeSkipsProductLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product := models.Product{Title: "Workbook", Price: decimal.NewFromInt(4), Currency: "USD"}
	require.NoError(t, env.db.Create(&product).Error)

	builder := newPaymentBuilder(env.db, env.currency, env.catalog)
	record, err := builder.buildRecord(ctx, models.GatewayManual, CreatePaymentInput{
		Currency: "EGP",
		Billing:  BillingInfo{Name: "Sara", Email: "sara@example.com"},
		Items:    []LineItemRequest{{ProductID: &product.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	_, _, err = env.sm.Advance(ctx, record.ID, models.PaymentSuccess, "admin:root", "")
	require.NoError(t, err)

	var payables int64
	require.NoError(t, env.db.Model(&models.TeacherProfitTransaction{}).Count(&payables).Error)
	assert.EqualValues(t, 0, payables, "product sales carry no teacher share")

	assert.EqualValues(t, 1, env.countFinanceRows(t, models.SourcePaymentAuto))
}

func TestMarkPaidSettlesOnce(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil, nil)
	record := env.createPayment(t, models.GatewayManual, "EGP", course, nil)
	ctx := context.Background()

	_, _, err := env.sm.Advance(ctx, record.ID, models.PaymentSuccess, "admin:root", "")
	require.NoError(t, err)

	var payable models.TeacherProfitTransaction
	require.NoError(t, env.db.First(&payable, "payment_id = ?", record.ID).Error)

	settled, err := env.revenue.MarkPaid(ctx, payable.ID, "bank transfer ref 771", "http://files/proof.png")
	require.NoError(t, err)
	assert.Equal(t, models.ProfitPaid, settled.Status)
	assert.NotNil(t, settled.PaidAt)
	assert.Equal(t, "bank transfer ref 771", settled.Notes)
	assert.Equal(t, "http://files/proof.png", settled.PayoutProofURL)

	_, err = env.revenue.MarkPaid(ctx, payable.ID, "", "")
	assert.True(t, IsError(err, ErrAlreadySettled))

	_, err = env.revenue.Cancel(ctx, payable.ID, "")
	assert.True(t, IsError(err, ErrAlreadySettled))
}

func TestMarkPaidUnknownPayable(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.revenue.MarkPaid(context.Background(), uuid.New(), "", "")
	assert.True(t, IsError(err, ErrNotFound))
}

func TestCancelPendingPayable(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil, nil)
	record := env.createPayment(t, models.GatewayManual, "EGP", course, nil)
	ctx := context.Background()

	_, _, err := env.sm.Advance(ctx, record.ID, models.PaymentSuccess, "admin:root", "")
	require.NoError(t, err)

	var payable models.TeacherProfitTransaction
	require.NoError(t, env.db.First(&payable, "payment_id = ?", record.ID).Error)

	cancelled, err := env.revenue.Cancel(ctx, payable.ID, "course withdrawn")
	require.NoError(t, err)
	assert.Equal(t, models.ProfitCancelled, cancelled.Status)
	assert.Equal(t, "course withdrawn", cancelled.Notes)
}
