package recon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

func TestApplyPaymentPartial(t *testing.T) {
	inv := Invoice{Total: 100}
	got := ApplyPayment(inv, 40, false)
	require.Equal(t, 40.0, got.Paid)
	require.False(t, got.PaidFlag)
}

func TestApplyPaymentClampsAboveTotal(t *testing.T) {
	inv := Invoice{Total: 100, Paid: 90}
	got := ApplyPayment(inv, 500, false)
	require.Equal(t, 100.0, got.Paid)
	require.True(t, got.PaidFlag)
}

func TestApplyPaymentClampsBelowZero(t *testing.T) {
	inv := Invoice{Total: 100, Paid: 20}
	got := ApplyPayment(inv, -80, false)
	require.Equal(t, 0.0, got.Paid)
	require.False(t, got.PaidFlag)
}

func TestApplyPaymentEpsilonSettles(t *testing.T) {
	inv := Invoice{Total: 100}
	got := ApplyPayment(inv, 99.995, false)
	require.Equal(t, 100.0, got.Paid)
	require.True(t, got.PaidFlag)
}

func TestApplyPaymentMarkPaidForcesSettlement(t *testing.T) {
	inv := Invoice{Total: 100, Paid: 10}
	got := ApplyPayment(inv, 0, true)
	require.Equal(t, 100.0, got.Paid)
	require.True(t, got.PaidFlag)
}

func TestApplyPaymentNegativeDeltaClearsFlag(t *testing.T) {
	inv := Invoice{Total: 100, Paid: 100, PaidFlag: true}
	got := ApplyPayment(inv, -30, false)
	require.Equal(t, 70.0, got.Paid)
	require.False(t, got.PaidFlag)
}

func TestApplyPaymentRoundsToCents(t *testing.T) {
	inv := Invoice{Total: 100}
	got := ApplyPayment(inv, 33.333333, false)
	require.Equal(t, 33.33, got.Paid)
}

func TestApplyPaymentZeroTotalIsPaid(t *testing.T) {
	inv := Invoice{Total: 0}
	got := ApplyPayment(inv, 0, false)
	require.True(t, got.PaidFlag)
	require.Equal(t, 0.0, got.Paid)
}

func TestBalanceNeverNegative(t *testing.T) {
	inv := Invoice{Total: 50, Paid: 80}
	require.Equal(t, 0.0, inv.Balance())
}

func TestNormalizePaidFlag(t *testing.T) {
	cases := []struct {
		raw  any
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"True", true},
		{"TRUE", true},
		{" true ", true},
		{"false", false},
		{"1", true},
		{"0", false},
		{1, true},
		{0, false},
		{1.0, true},
		{"DOĞRU", true},
		{"doğru", true},
		{"YANLIŞ", false},
		{"yanlış", false},
		{nil, false},
		{"evet", false},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, NormalizePaidFlag(tc.raw), "raw=%v", tc.raw)
	}
}

func TestClassifyDue(t *testing.T) {
	today := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	day := func(offset int) time.Time { return today.AddDate(0, 0, offset) }

	cases := []struct {
		name string
		inv  Invoice
		want DueBucket
	}{
		{"paid excluded", Invoice{PaidFlag: true, DueDate: day(-10)}, BucketNone},
		{"overdue", Invoice{DueDate: day(-1)}, BucketOverdue},
		{"due today", Invoice{DueDate: today}, BucketDueToday},
		{"due soon boundary", Invoice{DueDate: day(3)}, BucketDueSoon},
		{"future", Invoice{DueDate: day(4)}, BucketFuture},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyDue(tc.inv, today))
		})
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  any
		want float64
	}{
		{1234.5, 1234.5},
		{42, 42.0},
		{nil, 0.0},
		{"", 0.0},
		{"1234.56", 1234.56},
		{"1.234,56", 1234.56},
		{"1.234.567,89", 1234567.89},
		{"$1,5", 1.5},
		{"1500 USD", 1500.0},
		{"₺2.000,00", 2000.0},
		{"  250  ", 250.0},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.raw)
		require.NoErrorf(t, err, "raw=%v", tc.raw)
		require.Equalf(t, tc.want, got, "raw=%v", tc.raw)
	}
}

func TestParseAmountMalformed(t *testing.T) {
	_, err := ParseAmount("abc")
	require.ErrorIs(t, err, ErrMalformedAmount)

	_, err = ParseAmount([]string{"x"})
	require.ErrorIs(t, err, ErrMalformedAmount)
}

func TestAmountOrZeroSwallowsGarbage(t *testing.T) {
	require.Equal(t, 0.0, AmountOrZero("garbage"))
	require.Equal(t, 12.5, AmountOrZero("12,5"))
}

func TestFromRowToleratesMixedEncodings(t *testing.T) {
	inv := FromRow(store.Row{
		store.FieldID:     "inv-1",
		FieldCustomerName: "Acme",
		FieldProformaNo:   "PF-100",
		FieldTotal:        "1.000,50",
		FieldPaid:         250,
		FieldPaidFlag:     "DOĞRU",
		FieldDueDate:      "2026-04-01",
	})
	require.Equal(t, 1000.5, inv.Total)
	require.Equal(t, 250.0, inv.Paid)
	require.True(t, inv.PaidFlag)
	require.Equal(t, 2026, inv.DueDate.Year())
}
