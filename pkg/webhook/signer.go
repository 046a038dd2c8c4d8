package webhook

import (
	"net/http"
	"strconv"
	"time"
)

// Sign produces the X-Direqt-Signature value the gateway would send for body
// at the given unix timestamp.
func Sign(signingSecret string, timestamp int64, body []byte) string {
	return Version + "=" + computeDigest([]byte(signingSecret), Version, timestamp, body)
}

// SignatureHeaders returns both signing headers for body signed at now.
func SignatureHeaders(signingSecret string, body []byte, now time.Time) http.Header {
	ts := now.Unix()
	headers := make(http.Header)
	headers.Set(TimestampHeader, strconv.FormatInt(ts, 10))
	headers.Set(SignatureHeader, Sign(signingSecret, ts, body))
	return headers
}

// SignRequest sets the signing headers on req. body must be the exact bytes
// req will carry.
func SignRequest(req *http.Request, signingSecret string, body []byte, now time.Time) {
	for key, values := range SignatureHeaders(signingSecret, body, now) {
		req.Header[key] = values
	}
}
