package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	type banner struct {
		Text string `json:"text"`
	}
	require.NoError(t, env.settings.Set(ctx, "banner", banner{Text: "Ramadan sale"}))
	require.NoError(t, env.settings.Set(ctx, "banner", banner{Text: "Eid sale"}))

	var got banner
	require.NoError(t, env.settings.Get(ctx, "banner", &got))
	assert.Equal(t, "Eid sale", got.Text)
}

func TestPlatformProfitPercentDefaultsAndBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pct, err := env.settings.PlatformProfitPercent(ctx)
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.NewFromFloat(0.30)), "unconfigured installs fall back to 30%%")

	assert.True(t, IsError(
		env.settings.SetPlatformProfitPercent(ctx, decimal.NewFromFloat(1.5)), ErrValidation))
	assert.True(t, IsError(
		env.settings.SetPlatformProfitPercent(ctx, decimal.NewFromFloat(-0.1)), ErrValidation))

	require.NoError(t, env.settings.SetPlatformProfitPercent(ctx, decimal.NewFromFloat(0.45)))
	pct, err = env.settings.PlatformProfitPercent(ctx)
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.NewFromFloat(0.45)))
}

func TestPaymentMethodLookup(t *testing.T) {
	env := newTestEnv(t)
	seedMethods(t, env)
	ctx := context.Background()

	method, err := env.settings.PaymentMethod(ctx, "bank_transfer")
	require.NoError(t, err)
	assert.True(t, method.RequiresAttachment)

	_, err = env.settings.PaymentMethod(ctx, "old_wallet")
	assert.True(t, IsError(err, ErrValidation), "disabled methods are not selectable")

	_, err = env.settings.PaymentMethod(ctx, "carrier_pigeon")
	assert.True(t, IsError(err, ErrValidation))
}
