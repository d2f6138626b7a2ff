package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/baptistelechat/overti-me/internal/utils"
	"github.com/baptistelechat/overti-me/pkg/user"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "overti-me"

var ErrInvalidToken = errors.New("invalid session token")
var ErrMissingSecret = errors.New("auth secret is not configured")

type Claims struct {
	Uid   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens signs and validates HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  utils.Clock
}

func NewTokens(secret string, ttl time.Duration, clock utils.Clock) (*Tokens, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

func (t *Tokens) Issue(u user.User) (string, time.Time, error) {
	now := t.clock.Now()
	expiresAt := now.Add(t.ttl)
	claims := &Claims{
		Uid:   u.Uid,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.Uid,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (t *Tokens) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Uid == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
