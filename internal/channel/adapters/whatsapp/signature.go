package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/leadwireai/leadwire/internal/faults"
)

// SignatureHeader carries the provider's HMAC-SHA256 digest of the body.
const SignatureHeader = "X-Hub-Signature-256"

const signaturePrefix = "sha256="

// SignBody computes the hex digest the provider would send for a body.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the header digest against an HMAC-SHA256 over the
// exact raw body. The comparison is constant time.
func VerifySignature(secret string, body []byte, header string) error {
	if strings.TrimSpace(secret) == "" {
		return faults.Signature("webhook app secret is not configured")
	}
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, signaturePrefix) {
		return faults.Signature("missing or malformed signature header")
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return faults.Signature("signature is not valid hex")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return faults.Signature("signature mismatch")
	}
	return nil
}
