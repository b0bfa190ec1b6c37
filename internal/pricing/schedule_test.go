package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"portal/internal/payment"
)

func TestSchedule_Amount(t *testing.T) {
	s := NewSchedule("NGN")

	var tests = []struct {
		name        string
		purpose     payment.Purpose
		session     string
		expected    int64
		expectedErr error
	}{
		{name: "application fee", purpose: payment.PurposeApplicationFee, session: "2026/2027", expected: 2000},
		{name: "acceptance fee", purpose: payment.PurposeAcceptanceFee, session: "2026/2027", expected: 50000},
		{name: "tuition", purpose: payment.PurposeTuition, session: "2026/2027", expected: 150000},
		{name: "other has no default", purpose: payment.PurposeOther, session: "2026/2027", expectedErr: ErrNoFee},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			amt, currency, err := s.Amount(tt.purpose, tt.session)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "NGN", currency)
			require.True(t, amt.Equal(decimal.NewFromInt(tt.expected)))
		})
	}
}

func TestSchedule_Overrides(t *testing.T) {
	s := NewSchedule("")

	// Session-scoped override wins over the default for that session only.
	s.SetFee(payment.PurposeApplicationFee, "2027/2028", decimal.NewFromInt(2500))
	amt, currency, err := s.Amount(payment.PurposeApplicationFee, "2027/2028")
	require.NoError(t, err)
	require.Equal(t, "NGN", currency)
	require.True(t, amt.Equal(decimal.NewFromInt(2500)))

	amt, _, err = s.Amount(payment.PurposeApplicationFee, "2026/2027")
	require.NoError(t, err)
	require.True(t, amt.Equal(decimal.NewFromInt(2000)))

	// Empty session replaces the cross-session default.
	s.SetFee(payment.PurposeApplicationFee, "", decimal.NewFromInt(3000))
	amt, _, err = s.Amount(payment.PurposeApplicationFee, "2026/2027")
	require.NoError(t, err)
	require.True(t, amt.Equal(decimal.NewFromInt(3000)))

	// "other" becomes chargeable only once configured.
	s.SetFee(payment.PurposeOther, "", decimal.NewFromInt(100))
	amt, _, err = s.Amount(payment.PurposeOther, "2026/2027")
	require.NoError(t, err)
	require.True(t, amt.Equal(decimal.NewFromInt(100)))
}
