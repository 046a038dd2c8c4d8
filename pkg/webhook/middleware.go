package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// DefaultMaxBodyBytes caps how much of a webhook body is read for verification.
const DefaultMaxBodyBytes int64 = 1 << 20

type rawBodyKey struct{}

// WithRawBody returns a context carrying the exact request body bytes.
func WithRawBody(ctx context.Context, body []byte) context.Context {
	return context.WithValue(ctx, rawBodyKey{}, body)
}

// RawBody returns the body stored by CaptureRawBody or WithRawBody.
func RawBody(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(rawBodyKey{}).([]byte)
	return body, ok
}

// CaptureRawBody reads the request body once, before any decoding, and keeps the
// exact bytes in the request context. r.Body is replaced so later handlers can
// still read it.
func CaptureRawBody(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := RawBody(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			body, err := readBody(w, r, maxBytes)
			if err != nil {
				writeBodyError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRawBody(r.Context(), body)))
		})
	}
}

// ErrorHandler receives verification failures. It must write the rejection.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type middlewareConfig struct {
	errorHandler ErrorHandler
	logger       *slog.Logger
	maxBodyBytes int64
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithErrorHandler routes verification failures to h instead of the default
// 401 JSON response.
func WithErrorHandler(h ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithLogger logs rejected requests at warn level.
func WithLogger(logger *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.logger = logger
	}
}

// WithMaxBodyBytes bounds the body read when no raw body was captured upstream.
func WithMaxBodyBytes(n int64) MiddlewareOption {
	return func(c *middlewareConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// Middleware rejects requests whose Direqt signature does not verify. Verified
// requests reach next unchanged, with the raw body available through RawBody.
func Middleware(v *Verifier, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		errorHandler: DefaultErrorHandler,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, ok := RawBody(r.Context())
			if !ok {
				var err error
				body, err = readBody(w, r, cfg.maxBodyBytes)
				if err != nil {
					writeBodyError(w, err)
					return
				}
				r = r.WithContext(WithRawBody(r.Context(), body))
			}

			if err := v.VerifyRequest(r.Header, body); err != nil {
				if cfg.logger != nil {
					cfg.logger.Warn("webhook signature rejected",
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"error", err,
					)
				}
				cfg.errorHandler(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultErrorHandler answers verification failures with 401 and a JSON error.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
}

func readBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Body == nil {
		return []byte{}, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
