package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/daris/internal/models"
)

func TestCanTransition(t *testing.T) {
	valid := [][2]models.PaymentStatus{
		{models.PaymentPending, models.PaymentProcessing},
		{models.PaymentPending, models.PaymentFailed},
		{models.PaymentPending, models.PaymentCancelled},
		{models.PaymentProcessing, models.PaymentSuccess},
		{models.PaymentProcessing, models.PaymentFailed},
		{models.PaymentProcessing, models.PaymentRefunded},
		{models.PaymentSuccess, models.PaymentDelivered},
		{models.PaymentSuccess, models.PaymentRefunded},
		{models.PaymentDelivered, models.PaymentRefunded},
		{models.PaymentFailed, models.PaymentPending},
		{models.PaymentCancelled, models.PaymentPending},
	}
	for _, pair := range valid {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s should be allowed", pair[0], pair[1])
	}

	invalid := [][2]models.PaymentStatus{
		{models.PaymentPending, models.PaymentSuccess},
		{models.PaymentPending, models.PaymentDelivered},
		{models.PaymentPending, models.PaymentRefunded},
		{models.PaymentSuccess, models.PaymentPending},
		{models.PaymentSuccess, models.PaymentProcessing},
		{models.PaymentRefunded, models.PaymentPending},
		{models.PaymentRefunded, models.PaymentSuccess},
		{models.PaymentDelivered, models.PaymentSuccess},
		{models.PaymentCancelled, models.PaymentProcessing},
		{models.PaymentPending, models.PaymentPending},
	}
	for _, pair := range invalid {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s should be rejected", pair[0], pair[1])
	}
}

func TestTransitionPath(t *testing.T) {
	assert.Equal(t,
		[]models.PaymentStatus{models.PaymentProcessing, models.PaymentSuccess},
		TransitionPath(models.PaymentPending, models.PaymentSuccess))

	assert.Equal(t,
		[]models.PaymentStatus{models.PaymentProcessing},
		TransitionPath(models.PaymentPending, models.PaymentProcessing))

	assert.Nil(t, TransitionPath(models.PaymentRefunded, models.PaymentPending))
	assert.Nil(t, TransitionPath(models.PaymentPending, models.PaymentPending))
}

func TestTransitionAppendsHistory(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil, nil)
	record := env.createPayment(t, models.GatewayManual, "EGP", course, nil)
	require.Len(t, record.History, 0)

	updated, err := env.sm.Transition(context.Background(), record.ID,
		models.PaymentPending, models.PaymentProcessing, "admin:root", "verified transfer")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentProcessing, updated.Status)
	require.Len(t, updated.History, 2)
	assert.Equal(t, models.PaymentPending, updated.History[0].Status)
	assert.Equal(t, models.PaymentProcessing, updated.History[1].Status)
	assert.Equal(t, "admin:root", updated.History[1].Actor)
	assert.Equal(t, "verified transfer", updated.History[1].Note)
}

func TestTransitionRejectsInvalidStep(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil, nil)
	record := env.createPayment(t, models.GatewayManual, "EGP", course, nil)

	_, err := env.sm.Transition(context.Background(), record.ID,
		models.PaymentPending, models.PaymentDelivered, "admin:root", "")
	assert.True(t, IsError(err, ErrInvalidTransition))

	var reloaded models.PaymentRecord
	require.NoError(t, env.db.First(&reloaded, "id = ?", record.ID).Error)
	assert.Equal(t, models.PaymentPending, reloaded.Status)
}

func TestTransitionStaleState(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil, nil)
	record := env.createPayment(t, models.GatewayManual, "EGP", course, nil)

	// The step itself is valid, but the record is still pending.
	_, err := env.sm.Transition(context.Background(), record.ID,
		models.PaymentProcessing, models.PaymentSuccess, "admin:root", "")
	assert.True(t, IsError(err, ErrStaleState))

	var count int64
	require.NoError(t, env.db.Model(&models.PaymentStatusEntry{}).
		Where("payment_record_id = ?", record.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "a rejected transition must not append history")
}

func TestSuccessSideEffects(t *testing.T) {
	env := newTestEnv(t)
	course, teacher := env.seedCourse(t, nil, nil)
	record := env.createPayment(t, models.GatewayManual, "EGP", course, nil)

	updated, applied, err := env.sm.Advance(context.Background(), record.ID,
		models.PaymentSuccess, "admin:root", "transfer confirmed")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.PaymentSuccess, updated.Status)

	var income models.FinanceTransaction
	require.NoError(t, env.db.First(&income, "source = ?", models.SourcePaymentAuto).Error)
	assert.Equal(t, models.FinanceIncome, income.Type)
	assert.True(t, income.Amount.Equal(decimal.NewFromInt(500)))
	assert.True(t, income.AmountUSD.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, income.PaymentID)
	assert.Equal(t, record.ID, *income.PaymentID)

	var payable models.TeacherProfitTransaction
	require.NoError(t, env.db.First(&payable, "payment_id = ?", record.ID).Error)
	assert.Equal(t, teacher.ID, payable.TeacherID)
	assert.Equal(t, models.ProfitPending, payable.Status)
	assert.Equal(t, models.PercentagePlatformDefault, payable.PercentageSource)
	assert.True(t, payable.ProfitPercentage.Equal(decimal.NewFromFloat(0.30)))
	assert.True(t, payable.ProfitAmount.Equal(decimal.NewFromInt(150)), "got %s", payable.ProfitAmount)
	assert.Equal(t, "EGP", payable.Currency)
}

func TestAdvanceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil, nil)
	record := env.createPayment(t, models.GatewayManual, "EGP", course, nil)
	ctx := context.Background()

	_, applied, err := env.sm.Advance(ctx, record.ID, models.PaymentSuccess, "gateway:wallet", "webhook")
	require.NoError(t, err)
	assert.True(t, applied)

	_, applied, err = env.sm.Advance(ctx, record.ID, models.PaymentSuccess, "gateway:wallet", "webhook")
	require.NoError(t, err)
	assert.False(t, applied, "a record already at target is a no-op")

	assert.EqualValues(t, 1, env.countFinanceRows(t, models.SourcePaymentAuto))

	var payables int64
	require.NoError(t, env.db.Model(&models.TeacherProfitTransaction{}).
		Where("payment_id = ?", record.ID).Count(&payables).Error)
	assert.EqualValues(t, 1, payables)
}

func TestRefundReversesAndCancelsPayables(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil, nil)
	record := env.createPayment(t, models.GatewayManual, "EGP", course, nil)
	ctx := context.Background()

	_, _, err := env.sm.Advance(ctx, record.ID, models.PaymentSuccess, "admin:root", "")
	require.NoError(t, err)

	_, err = env.sm.Transition(ctx, record.ID, models.PaymentSuccess, models.PaymentRefunded,
		"admin:root", "customer refund")
	require.NoError(t, err)

	var refund models.FinanceTransaction
	require.NoError(t, env.db.First(&refund, "source = ?", models.SourceRefundAuto).Error)
	assert.Equal(t, models.FinanceExpense, refund.Type)
	assert.True(t, refund.AmountUSD.Equal(decimal.NewFromInt(10)))

	var payable models.TeacherProfitTransaction
	require.NoError(t, env.db.First(&payable, "payment_id = ?", record.ID).Error)
	assert.Equal(t, models.ProfitCancelled, payable.Status)
}

func TestRefundLeavesPaidPayablesAlone(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil, nil)
	record := env.createPayment(t, models.GatewayManual, "EGP", course, nil)
	ctx := context.Background()

	_, _, err := env.sm.Advance(ctx, record.ID, models.PaymentSuccess, "admin:root", "")
	require.NoError(t, err)

	var payable models.TeacherProfitTransaction
	require.NoError(t, env.db.First(&payable, "payment_id = ?", record.ID).Error)
	_, err = env.revenue.MarkPaid(ctx, payable.ID, "paid out", "")
	require.NoError(t, err)

	_, err = env.sm.Transition(ctx, record.ID, models.PaymentSuccess, models.PaymentRefunded,
		"admin:root", "customer refund")
	require.NoError(t, err)

	require.NoError(t, env.db.First(&payable, "id = ?", payable.ID).Error)
	assert.Equal(t, models.ProfitPaid, payable.Status, "already-paid payables are manual follow-up")
}

func TestConversionLinksCartOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	course, _ := env.seedCourse(t, nil, nil)
	ctx := context.Background()

	session, err := env.carts.Track(ctx, TrackInput{
		CustomerEmail: "sara@example.com",
		Currency:      "EGP",
		Items: []models.CartItem{
			{Title: course.Title, Quantity: 1, UnitPrice: decimal.NewFromInt(500)},
		},
	})
	require.NoError(t, err)

	record := env.createPayment(t, models.GatewayHosted, "EGP", course, func(in *CreatePaymentInput) {
		in.CartSessionID = &session.ID
	})

	_, _, err = env.sm.Advance(ctx, record.ID, models.PaymentSuccess, "gateway:hosted", "webhook paid")
	require.NoError(t, err)

	var reloaded models.CartSession
	require.NoError(t, env.db.First(&reloaded, "id = ?", session.ID).Error)
	assert.Equal(t, models.CartConverted, reloaded.Status)
	require.NotNil(t, reloaded.ConvertedPaymentID)
	assert.Equal(t, record.ID, *reloaded.ConvertedPaymentID)
}
