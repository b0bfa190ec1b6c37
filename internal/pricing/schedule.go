package pricing

import (
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"portal/internal/payment"
)

var ErrNoFee = errors.New("pricing: no fee configured")

// Schedule maps a payment purpose to its configured fee. Fees are flat
// per purpose across sessions; session-specific overrides can be added
// with SetFee.
type Schedule struct {
	currency  string
	defaults  map[payment.Purpose]decimal.Decimal
	overrides map[string]decimal.Decimal
}

func NewSchedule(currency string) *Schedule {
	if currency == "" {
		currency = "NGN"
	}
	return &Schedule{
		currency: currency,
		defaults: map[payment.Purpose]decimal.Decimal{
			payment.PurposeApplicationFee: decimal.NewFromInt(2000),
			payment.PurposeAcceptanceFee:  decimal.NewFromInt(50000),
			payment.PurposeTuition:        decimal.NewFromInt(150000),
		},
		overrides: make(map[string]decimal.Decimal),
	}
}

// SetFee overrides the fee for a purpose, optionally scoped to one
// session. An empty session sets the cross-session default.
func (s *Schedule) SetFee(purpose payment.Purpose, session string, amount decimal.Decimal) {
	if session == "" {
		s.defaults[purpose] = amount
		return
	}
	s.overrides[string(purpose)+"|"+session] = amount
}

func (s *Schedule) Amount(purpose payment.Purpose, session string) (decimal.Decimal, string, error) {
	if amt, ok := s.overrides[string(purpose)+"|"+session]; ok {
		return amt, s.currency, nil
	}
	amt, ok := s.defaults[purpose]
	if !ok {
		log.Printf("layer=service component=pricing method=Amount purpose=%s session=%s err=%v", purpose, session, ErrNoFee)
		return decimal.Zero, s.currency, ErrNoFee
	}
	return amt, s.currency, nil
}
