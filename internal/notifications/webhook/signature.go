package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix>,v1=<hex>[,v1_old=<hex>]". The signed
// content is "<unix>.<body>" under HMAC-SHA256.
const SignatureHeader = "X-Courier-Signature"

// Signer signs payloads with the current secret and, until previousUntil,
// also with the previous one so receivers can rotate without downtime.
type Signer struct {
	secret        string
	previous      string
	previousUntil time.Time
}

// NewSigner returns nil when secret is empty; a nil Signer signs nothing.
func NewSigner(secret, previous string, previousUntil time.Time) *Signer {
	if secret == "" {
		return nil
	}
	return &Signer{secret: secret, previous: previous, previousUntil: previousUntil}
}

// Sign returns the header value for payload at now.
func (s *Signer) Sign(payload []byte, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	header := fmt.Sprintf("t=%s,v1=%s", ts, computeHMAC(ts, payload, s.secret))
	if s.previous != "" && !s.previousUntil.IsZero() && !now.After(s.previousUntil) {
		header += ",v1_old=" + computeHMAC(ts, payload, s.previous)
	}
	return header
}

// Verify checks header against payload using any of the given secrets and
// rejects timestamps further than tolerance from now. Receivers can use it
// as a reference implementation.
func Verify(payload []byte, header string, now time.Time, tolerance time.Duration, secrets ...string) bool {
	parts := parseSignatureHeader(header)
	if parts.timestamp == "" || len(parts.signatures) == 0 {
		return false
	}
	unix, err := strconv.ParseInt(parts.timestamp, 10, 64)
	if err != nil {
		return false
	}
	if d := now.Sub(time.Unix(unix, 0)); d > tolerance || d < -tolerance {
		return false
	}

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		expected := computeHMAC(parts.timestamp, payload, secret)
		for _, sig := range parts.signatures {
			if hmac.Equal([]byte(sig), []byte(expected)) {
				return true
			}
		}
	}
	return false
}

type signatureParts struct {
	timestamp  string
	signatures []string
}

func parseSignatureHeader(header string) signatureParts {
	var parts signatureParts
	for _, segment := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(segment), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parts.timestamp = value
		case "v1", "v1_old":
			parts.signatures = append(parts.signatures, value)
		}
	}
	return parts
}

func computeHMAC(timestamp string, payload []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
