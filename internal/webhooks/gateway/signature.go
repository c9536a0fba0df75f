package gatewaywebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/partsbay/partsbay-backend/pkg/errors"
)

// SignatureHeader carries the gateway's HMAC tag on every delivery.
const SignatureHeader = "X-Gateway-Signature"

const signaturePrefix = "sha256="

// Sign computes the signature header value for a payload. Exposed for tests
// and local tooling that replays gateway deliveries.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the HMAC-SHA256 tag over the raw request body.
// Comparison is constant time.
func VerifySignature(secret string, payload []byte, header string) error {
	if secret == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "gateway webhook secret not configured")
	}
	if header == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway signature missing")
	}
	encoded, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed gateway signature")
	}
	provided, err := hex.DecodeString(encoded)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed gateway signature")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway signature mismatch")
	}
	return nil
}
