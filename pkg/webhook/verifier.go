// Package webhook verifies that inbound webhook calls were signed by the Direqt
// messaging gateway.
//
// Each call carries two headers: X-Direqt-Request-Timestamp, the unix time in
// seconds at which the gateway signed the request, and X-Direqt-Signature, of
// the form "v0=<hex>". The hex digest is HMAC-SHA256, keyed by the bot's
// signing secret, over "<version>:<timestamp>:<raw body>". Requests signed more
// than five minutes before verification are rejected.
//
// The signature covers the exact bytes received, so the body must be captured
// before anything decodes it. CaptureRawBody and Middleware take care of that
// for net/http servers.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-Direqt-Signature"
	TimestampHeader = "X-Direqt-Request-Timestamp"

	// Version is the signature scheme the gateway currently emits.
	Version = "v0"

	// FreshnessWindow bounds how old a request timestamp may be.
	FreshnessWindow = 5 * time.Minute
)

// Verifier checks Direqt request signatures against a shared signing secret.
// A Verifier is immutable and safe for concurrent use.
type Verifier struct {
	signingSecret []byte
	now           func() time.Time
	strictVersion bool
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock replaces the wall clock used for the freshness check.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithStrictVersion rejects signatures whose version tag is not Version.
func WithStrictVersion() Option {
	return func(v *Verifier) {
		v.strictVersion = true
	}
}

// NewVerifier creates a verifier for the given signing secret.
func NewVerifier(signingSecret string, opts ...Option) (*Verifier, error) {
	if signingSecret == "" {
		return nil, ErrEmptySecret
	}
	v := &Verifier{
		signingSecret: []byte(signingSecret),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks a signature header value and declared timestamp against body.
func (v *Verifier) Verify(signature string, timestamp int64, body []byte) error {
	cutoff := v.now().Unix() - int64(FreshnessWindow/time.Second)
	if timestamp < cutoff {
		return ErrOutdatedSignature
	}

	version, hash, ok := strings.Cut(signature, "=")
	if !ok {
		return fmt.Errorf("%w: signature must have the form <version>=<digest>", ErrMalformedHeaders)
	}
	if v.strictVersion && version != Version {
		return fmt.Errorf("%w: unsupported signature version %q", ErrMalformedHeaders, version)
	}

	expected := computeDigest(v.signingSecret, version, timestamp, body)
	if !hmac.Equal([]byte(hash), []byte(expected)) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyRequest extracts the signature and timestamp headers and verifies them
// against body, which must be the raw request body.
func (v *Verifier) VerifyRequest(headers http.Header, body []byte) error {
	timestamp := headers.Get(TimestampHeader)
	signature := headers.Get(SignatureHeader)
	if timestamp == "" || signature == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid request timestamp: %v", ErrMalformedHeaders, err)
	}
	return v.Verify(signature, ts, body)
}

func computeDigest(secret []byte, version string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(version))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte(":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
