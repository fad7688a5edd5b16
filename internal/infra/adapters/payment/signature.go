package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"health-insurance-portal/internal/domain"
)

var (
	errMissingSignature = errors.New("missing signature header")
	errBadSignature     = errors.New("no matching signature")
)

// VerifyPaystackSignature checks x-paystack-signature, the hex HMAC-SHA512 of the raw body.
func VerifyPaystackSignature(payload []byte, header, secret string) error {
	if header == "" {
		return fmt.Errorf("%w: %w", domain.ErrSignature, errMissingSignature)
	}
	got, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return fmt.Errorf("%w: malformed header", domain.ErrSignature)
	}
	if !hmac.Equal(SignPaystackPayload(payload, secret), got) {
		return fmt.Errorf("%w: %w", domain.ErrSignature, errBadSignature)
	}
	return nil
}

func SignPaystackPayload(payload []byte, secret string) []byte {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
