package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

// SignatureHeaders carries the signature of one request.
type SignatureHeaders struct {
	Signature string
	Timestamp int64
}

// Apply sets the signature headers on h.
func (s SignatureHeaders) Apply(h http.Header) {
	h.Set(HeaderSignature, s.Signature)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
}

// SignPayload signs payload for timestamp ts.
// Signature format: hex(HMAC-SHA256(secret, timestamp + "." + payload)).
func SignPayload(secret string, payload []byte, ts time.Time) (SignatureHeaders, error) {
	if secret == "" {
		return SignatureHeaders{}, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return SignatureHeaders{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	unix := ts.Unix()
	return SignatureHeaders{Signature: sign(secret, unix, payload), Timestamp: unix}, nil
}

// VerifySignature checks headers against payload. With maxAge > 0 the
// timestamp must be no older than maxAge and at most one minute in the future.
func VerifySignature(secret string, payload []byte, headers SignatureHeaders, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if headers.Signature == "" || headers.Timestamp == 0 {
		return ErrMissingSignature
	}

	if maxAge > 0 {
		age := now.Sub(time.Unix(headers.Timestamp, 0))
		if age > maxAge {
			return fmt.Errorf("%w: signed %v ago", ErrSignatureExpired, age.Round(time.Second))
		}
		if age < -time.Minute {
			return fmt.Errorf("%w: timestamp is in the future", ErrSignatureExpired)
		}
	}

	expected := sign(secret, headers.Timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(headers.Signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// ExtractSignatureHeaders reads the signature headers of r.
func ExtractSignatureHeaders(h http.Header) (SignatureHeaders, error) {
	sig := SignatureHeaders{Signature: h.Get(HeaderSignature)}
	if ts := h.Get(HeaderTimestamp); ts != "" {
		var err error
		if sig.Timestamp, err = strconv.ParseInt(ts, 10, 64); err != nil {
			return SignatureHeaders{}, fmt.Errorf("%w: invalid timestamp format", ErrMissingSignature)
		}
	}
	if sig.Signature == "" || sig.Timestamp == 0 {
		return SignatureHeaders{}, ErrMissingSignature
	}
	return sig, nil
}

func sign(secret string, unix int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.", unix)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
