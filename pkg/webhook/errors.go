package webhook

import "errors"

var (
	ErrEmptySecret       = errors.New("signing secret is required")
	ErrMissingHeaders    = errors.New("missing headers: X-Direqt-Request-Timestamp, X-Direqt-Signature")
	ErrMalformedHeaders  = errors.New("malformed signature headers")
	ErrOutdatedSignature = errors.New("request signature is outdated")
	ErrSignatureMismatch = errors.New("request signing verification failed")
)

// IsVerificationError reports whether err is one of the request rejection errors
// produced by VerifyRequest.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrMissingHeaders) ||
		errors.Is(err, ErrMalformedHeaders) ||
		errors.Is(err, ErrOutdatedSignature) ||
		errors.Is(err, ErrSignatureMismatch)
}
