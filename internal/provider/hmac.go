package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strconv"
	"time"
)

// signPayload computes the hex HMAC of payload||"."||unix(timestamp) with
// the gateway shared secret.
func signPayload(newHash func() hash.Hash, secret string, payload []byte, timestamp time.Time) string {
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(payload)
	mac.Write([]byte("." + strconv.FormatInt(timestamp.Unix(), 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// checkHMAC verifies signature in constant time and rejects timestamps
// outside the replay window in either direction.
func checkHMAC(newHash func() hash.Hash, secret string, payload []byte, signature string, timestamp time.Time) bool {
	age := time.Since(timestamp)
	if age > ReplayWindow || age < -ReplayWindow {
		return false
	}
	expected := signPayload(newHash, secret, payload, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func SignSHA256(secret string, payload []byte, timestamp time.Time) string {
	return signPayload(sha256.New, secret, payload, timestamp)
}

func SignSHA512(secret string, payload []byte, timestamp time.Time) string {
	return signPayload(sha512.New, secret, payload, timestamp)
}
