package webhook

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrMissingSignature     = errors.New("webhook signature headers are missing")
	ErrSignatureExpired     = errors.New("webhook signature timestamp outside the allowed window")
	ErrSignatureMismatch    = errors.New("webhook signature mismatch")
)
