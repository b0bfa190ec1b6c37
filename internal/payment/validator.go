package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("invalid payment request")

type InitiateRequest struct {
	CandidateID       string
	Purpose           Purpose
	Amount            decimal.Decimal
	Currency          string
	Session           string
	Email             string
	Phone             string
	PreferredProvider string
	IdempotencyKey    string
	Metadata          map[string]string
}

func ValidateInitiateRequest(r InitiateRequest) error {
	switch {
	case r.CandidateID == "",
		r.Session == "",
		r.IdempotencyKey == "",
		len(r.Currency) != 3,
		r.Amount.Sign() <= 0,
		!ValidPurpose(r.Purpose):
		return ErrInvalidRequest
	}
	return nil
}

// RequestHash fingerprints the normalized request so a replayed
// idempotency key carrying different content is detected as a conflict
// rather than silently honored.
func RequestHash(r InitiateRequest) string {
	norm := strings.Join([]string{
		r.CandidateID,
		string(r.Purpose),
		r.Amount.StringFixed(2),
		strings.ToUpper(r.Currency),
		r.Session,
	}, "|")
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
