/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package authjwt issues and verifies the HS256 JWTs the WebSocket server
// uses to gate client frames (§4.5). Grounded on the teacher's
// ingesters/HttpIngester/auth.go token-auth flow, rebuilt against
// github.com/golang-jwt/jwt/v5's Claims/ParseWithClaims API instead of
// the older jwt/v4 surface the teacher used.
package authjwt

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience and Scope are fixed per §4.5: "aud: goaccess_ws, scope:
// report_access".
const (
	Audience = "goaccess_ws"
	Scope    = "report_access"

	// DefaultExpiry is the --ws-auth-expire default (§6).
	DefaultExpiry = 30 * time.Minute
)

var (
	ErrEmptySubject  = errors.New("authjwt: subject must not be empty")
	ErrWrongIssuer   = errors.New("authjwt: unexpected issuer")
	ErrWrongAudience = errors.New("authjwt: unexpected audience")
	ErrWrongScope    = errors.New("authjwt: unexpected scope")
)

// Claims is the JWT payload shape from §4.5.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies tokens for one hostname/secret pair. A Server
// with no secret configured (§4.5: "When a secret is configured...")
// disables the auth gate entirely; NewIssuer with an empty secret panics
// to catch that mistake at wiring time rather than silently minting
// unsigned tokens.
type Issuer struct {
	hostname string
	secret   []byte
	expiry   time.Duration
}

// NewIssuer builds an Issuer. hostname is embedded as the "iss" claim and
// re-checked on verification (§4.5 step 3). expiry <= 0 uses DefaultExpiry.
func NewIssuer(hostname, secret string, expiry time.Duration) *Issuer {
	if secret == "" {
		panic("authjwt: empty secret")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Issuer{hostname: hostname, secret: []byte(secret), expiry: expiry}
}

// Issue mints a signed token for subject sub.
func (i *Issuer) Issue(sub string) (string, error) {
	if sub == "" {
		return "", ErrEmptySubject
	}
	now := time.Now()
	claims := Claims{
		Scope: Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.hostname,
			Subject:   sub,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.secret)
}

// Verify parses and validates a token per §4.5's three verification
// steps: signature, then iss/aud/scope, then the iat/exp window (the
// library enforces iat<=now<=exp as part of Parse).
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuedAt())
	if err != nil {
		return nil, err
	}
	if claims.Issuer != i.hostname {
		return nil, ErrWrongIssuer
	}
	if !slices.Contains(claims.Audience, Audience) {
		return nil, ErrWrongAudience
	}
	if claims.Scope != Scope {
		return nil, ErrWrongScope
	}
	if claims.Subject == "" {
		return nil, ErrEmptySubject
	}
	return &claims, nil
}
