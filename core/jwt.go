package core

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionIssuer marks admin session tokens minted by stockd itself. Tokens
// issued by the content-management application may leave it empty.
const SessionIssuer = "stockd"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
)

// Claims carry an admin session of the content-management application. The
// IMS profile, stored tokens and licenses all hang off UserID, so a session
// never names anything but a positive admin id.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateAdminToken opens an admin session lasting JWTConfig.AccessTokenDuration.
// Subject mirrors UserID and every session gets its own jti.
func GenerateAdminToken(userID int64, config *JWTConfig) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("%w: admin user id must be positive", ErrInvalidArgument)
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    SessionIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(config.AccessTokenDuration) * time.Second)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign admin session: %w", err)
	}
	return signed, nil
}

// ValidateAdminToken resolves a session to its admin user id. Only HMAC
// signatures are accepted. A subject, when present, must agree with user_id.
func ValidateAdminToken(tokenString string, config *JWTConfig) (int64, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(config.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, ErrInvalidToken
	}

	if claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}
	if claims.Subject != "" && claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}
