// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing,
// expiry inspection) from the domain logic. The signing half serves the
// sandbox backend; the inspection half serves the client, which never
// holds a verification key and only peeks at self-describing claims.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// # Shape
//
// The backend keys tokens by the account ID in the Subject claim and tags
// the token kind in "type" so refresh material can never be replayed as an
// access credential.
type AuthClaims struct {
	jwt.RegisteredClaims

	// TokenType distinguishes access tokens from other signed material.
	TokenType string `json:"type"`
}

// TokenService handles generation and verification of JWT tokens using HS256.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a new TokenService with a shared HMAC secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// GenerateAccessToken creates a new JWT access token for the given subject.
func (service *TokenService) GenerateAccessToken(subject string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		TokenType: "access",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature and validity of a JWT string.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	return claims, nil
}

// # Client-Side Inspection

// unverifiedParser decodes claims without checking the signature. The
// client has no verification key; it only reads the self-describing
// expiry to decide whether a round trip is worth attempting.
var unverifiedParser = jwt.NewParser()

// Expiry returns the expiry claim of a JWT without verifying its signature.
//
// An error means the string is not a decodable JWT or carries no expiry.
// Callers decide whether that is fatal (access tokens) or neutral (opaque
// refresh tokens).
func Expiry(tokenString string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(tokenString, &claims); err != nil {
		return time.Time{}, fmt.Errorf("sec: failed to decode token: %w", err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("sec: token carries no expiry claim")
	}

	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether the token's expiry claim is in the past.
//
// Fail-closed: any string that cannot be decoded counts as expired.
func IsExpired(tokenString string) bool {
	expiresAt, err := Expiry(tokenString)
	if err != nil {
		return true
	}

	return !expiresAt.After(time.Now())
}
