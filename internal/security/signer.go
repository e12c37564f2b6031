package security

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"
)

// RequestSigner generates and verifies HMAC-SHA256 signatures over request
// payloads, with nonce tracking to reject replays within the validity window.
type RequestSigner struct {
	secret []byte
	maxAge time.Duration
	nonces Store[time.Time]
	clock  Clock
}

func NewRequestSigner(secret []byte, nonces Store[time.Time], policy Policy, clock Clock) *RequestSigner {
	if nonces == nil {
		nonces = NewMemoryStore[time.Time]()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &RequestSigner{
		secret: secret,
		maxAge: policy.Normalize().SignatureMaxAge,
		nonces: nonces,
		clock:  clock,
	}
}

// Sign computes the hex HMAC-SHA256 of the canonicalized payload joined with
// the millisecond timestamp and nonce.
func (s *RequestSigner) Sign(payload []byte, timestampMillis int64, nonce string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonicalPayload(payload)))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatInt(timestampMillis, 10)))
	mac.Write([]byte(":"))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks timestamp freshness, nonce novelty, and the signature itself.
// The nonce is consumed on success and stays in the cache for the full max
// age, so it is remembered at least as long as the request could still be
// replayed. The consume step is atomic: of two concurrent verifications with
// the same nonce, at most one succeeds.
func (s *RequestSigner) Verify(payload []byte, signature string, timestampMillis int64, nonce string) bool {
	if signature == "" || nonce == "" || timestampMillis <= 0 {
		return false
	}

	now := s.clock.Now()
	age := now.Sub(time.UnixMilli(timestampMillis))
	if age > s.maxAge || age < -s.maxAge {
		return false
	}

	if expiry, seen := s.nonces.Get(nonce); seen && now.Before(expiry) {
		return false
	}

	expected := s.Sign(payload, timestampMillis, nonce)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return false
	}

	fresh := false
	s.nonces.Update(nonce, func(expiry time.Time, exists bool) (time.Time, bool) {
		if exists && now.Before(expiry) {
			return expiry, true
		}
		fresh = true
		return now.Add(s.maxAge), true
	})
	return fresh
}

// SweepNonces drops consumed nonces whose validity window has passed.
func (s *RequestSigner) SweepNonces() int {
	now := s.clock.Now()
	return s.nonces.Sweep(func(expiry time.Time) bool {
		return now.After(expiry)
	})
}

// canonicalPayload renders a payload deterministically: JSON payloads are
// re-encoded with sorted object keys and numbers kept verbatim, so semantically
// identical bodies produce identical signatures regardless of whitespace or
// key order. Non-JSON payloads are signed as-is.
func canonicalPayload(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return ""
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return string(trimmed)
	}
	if decoder.More() {
		return string(trimmed)
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return string(trimmed)
	}
	return string(encoded)
}
