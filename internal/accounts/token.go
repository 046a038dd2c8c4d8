package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenInvalid = errors.New("token invalid")

// TokenInfo describes an API token without verifying its signature. It is for
// display only; the API remains the authority on whether a token is valid.
type TokenInfo struct {
	Subject   string
	Email     string
	Issuer    string
	ExpiresAt time.Time
}

type apiTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

func InspectToken(tokenString string) (*TokenInfo, error) {
	claims := &apiTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	info := &TokenInfo{
		Subject: claims.Subject,
		Email:   claims.Email,
		Issuer:  claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expired reports whether the token has an expiry before now.
func (t *TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}
