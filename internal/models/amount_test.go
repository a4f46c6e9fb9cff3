package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSTXToMicroSTX(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{name: "whole STX", amount: "5", want: "5000000"},
		{name: "fractional STX", amount: "1.5", want: "1500000"},
		{name: "single microSTX", amount: "0.000001", want: "1"},
		{name: "sub-atomic truncates", amount: "0.0000015", want: "1"},
		{name: "zero", amount: "0", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, STXToMicroSTX(amount))
		})
	}
}

func TestMicroSTXToSTX(t *testing.T) {
	got, err := MicroSTXToSTX("2500000")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("2.5")))

	_, err = MicroSTXToSTX("not-a-number")
	assert.Error(t, err)
}

func TestPaymentStatusTransitions(t *testing.T) {
	assert.False(t, PaymentPending.IsTerminal())
	assert.True(t, PaymentCompleted.IsTerminal())
	assert.True(t, PaymentFailed.IsTerminal())
	assert.False(t, PaymentStatus("refunded").IsValid())
}

func TestPlanTemplateSentinels(t *testing.T) {
	assert.True(t, IsPlanTemplate(TemplatePlaceholder))
	assert.True(t, IsPlanTemplate(TemplatePlan))
	assert.False(t, IsPlanTemplate("ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"))

	sub := &Subscription{SubscriberAddress: TemplatePlaceholder}
	assert.True(t, sub.IsTemplate())
}
