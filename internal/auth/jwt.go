package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenClaims represents the claims carried by a session token
type TokenClaims struct {
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// JWTService issues and verifies HS256-signed bearer tokens. The token is
// self-contained: possession of a validly signed, unexpired token is proof
// of identity, and nothing is persisted server-side.
type JWTService struct {
	secret   []byte
	duration time.Duration
}

func NewJWTService(secret []byte, duration time.Duration) (*JWTService, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt signing secret must not be empty")
	}

	return &JWTService{
		secret:   secret,
		duration: duration,
	}, nil
}

// CreateToken generates a signed token binding the user id, expiring
// after the configured duration
func (s *JWTService) CreateToken(userID primitive.ObjectID) (string, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   userID.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyToken validates a token and returns its claims. Expiry and
// signature failures surface as distinct errors, though callers deny
// access identically for both.
func (s *JWTService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		UserID:    claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
