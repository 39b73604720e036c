package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "freelance_hub/pkg/errors"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims - claims access токена
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenType string    `json:"token_type"`
	gojwt.RegisteredClaims
}

// GrantClaims - claims подписанного разрешения на подписку к каналу.
// Разрешение привязано к конкретному socket_id и каналу.
type GrantClaims struct {
	SocketID string    `json:"socket_id"`
	Channel  string    `json:"channel"`
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role"`
	gojwt.RegisteredClaims
}

func GenerateAccessToken(userID uuid.UUID, email, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: TokenTypeAccess,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return sign(claims, secret)
}

func GenerateRefreshToken(userID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := gojwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        uuid.NewString(),
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}
	return sign(claims, secret)
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	if err := parse(tokenString, secret, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess || claims.UserID == uuid.Nil {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

func ValidateRefreshToken(tokenString, secret string) (*gojwt.RegisteredClaims, error) {
	claims := &gojwt.RegisteredClaims{}
	if err := parse(tokenString, secret, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// GenerateChannelGrant подписывает разрешение на подписку к каналу
func GenerateChannelGrant(grant GrantClaims, issuer, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	grant.RegisteredClaims = gojwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   grant.UserID.String(),
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}
	return sign(grant, secret)
}

func ValidateChannelGrant(tokenString, issuer, secret string) (*GrantClaims, error) {
	claims := &GrantClaims{}
	if err := parse(tokenString, secret, claims, gojwt.WithIssuer(issuer)); err != nil {
		return nil, err
	}
	if claims.SocketID == "" || claims.Channel == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

func sign(claims gojwt.Claims, secret string) (string, error) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func parse(tokenString, secret string, claims gojwt.Claims, opts ...gojwt.ParserOption) error {
	opts = append(opts, gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}))
	token, err := gojwt.ParseWithClaims(tokenString, claims, func(token *gojwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return apperrors.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}
	if !token.Valid {
		return apperrors.ErrInvalidToken
	}
	return nil
}
