// Package identity answers "who is signed in" for the sync engine.
//
// The account is read from a bearer token kept in a file. The token is a
// JWT whose claims are parsed without signature verification: the
// authority verifies it, the client only needs the subject and expiry.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken means no one is signed in.
	ErrNoToken = errors.New("no token")

	// ErrExpired means the token's exp claim has passed.
	ErrExpired = errors.New("token expired")

	// ErrNoSubject means the token names no user.
	ErrNoSubject = errors.New("token has no subject")
)

// Claims are the parts of a token the engine uses.
type Claims struct {
	UserID    string
	ExpiresAt *time.Time
}

// ParseToken extracts the user id (sub, falling back to user_id) and expiry
// from raw. A token whose exp is at or before now is rejected.
func ParseToken(raw string, now time.Time) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrNoToken
	}

	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(raw, gojwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}
	mapClaims := token.Claims.(gojwt.MapClaims)

	var claims Claims
	if sub, err := mapClaims.GetSubject(); err == nil && sub != "" {
		claims.UserID = sub
	} else if userID, ok := mapClaims["user_id"].(string); ok {
		claims.UserID = userID
	}
	if claims.UserID == "" {
		return Claims{}, ErrNoSubject
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp != nil {
		t := exp.Time.UTC()
		claims.ExpiresAt = &t
		if !t.After(now) {
			return claims, ErrExpired
		}
	}
	return claims, nil
}
