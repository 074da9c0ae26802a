package auth

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenService defines the interface for token creation and validation
type TokenService interface {
	CreateToken(userID primitive.ObjectID) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// EmailService defines the interface for the email operations the auth
// flow depends on
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, toName, token string) error
}
