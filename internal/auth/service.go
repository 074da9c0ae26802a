package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inventio/inventory-api/internal/logging"
	"github.com/inventio/inventory-api/internal/user"
)

var (
	ErrNameRequired         = errors.New("name is required")
	ErrEmailRequired        = errors.New("email is required")
	ErrInvalidEmailFormat   = errors.New("invalid email format")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrOldPasswordIncorrect = errors.New("old password is incorrect")
	ErrSamePassword         = errors.New("new password must be different from the old password")
	ErrEmailDelivery        = errors.New("email could not be sent, please try again later")
)

// UserStore is the slice of the user repository the auth flow needs
type UserStore interface {
	Create(ctx context.Context, u *user.User) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*user.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
}

// ResetTokenStore is the persistence contract for one-time reset tokens
type ResetTokenStore interface {
	DeleteForUser(ctx context.Context, userID primitive.ObjectID) error
	Store(ctx context.Context, userID primitive.ObjectID, token string) error
	FindValid(ctx context.Context, token string) (*ResetToken, error)
	Claim(ctx context.Context, id primitive.ObjectID) error
}

// AuthResult is what a successful register or login produces
type AuthResult struct {
	User  *user.User
	Token string
}

// Service handles authentication business logic
type Service struct {
	users        UserStore
	resetTokens  ResetTokenStore
	tokenService TokenService
	emailService EmailService
	logger       *logging.Logger
}

func NewService(
	users UserStore,
	resetTokens ResetTokenStore,
	tokenService TokenService,
	emailService EmailService,
	logger *logging.Logger,
) *Service {
	return &Service{
		users:        users,
		resetTokens:  resetTokens,
		tokenService: tokenService,
		emailService: emailService,
		logger:       logger,
	}
}

// Register creates a new user account and issues a session token
func (s *Service) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, ErrNameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Stored lower-cased; the collation index still guards the race
	newUser, err := s.users.Create(ctx, &user.User{
		Name:         name,
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokenService.CreateToken(newUser.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &AuthResult{User: newUser, Token: token}, nil
}

// Login authenticates a user and issues a session token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(existing.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenService.CreateToken(existing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &AuthResult{User: existing, Token: token}, nil
}

// LoginStatus reports whether a token is present, well-formed and unexpired
func (s *Service) LoginStatus(token string) bool {
	if token == "" {
		return false
	}
	_, err := s.tokenService.VerifyToken(token)
	return err == nil
}

// ChangePassword replaces the caller's password after checking the old one
func (s *Service) ChangePassword(ctx context.Context, u *user.User, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return ErrPasswordRequired
	}
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	if !VerifyPassword(u.PasswordHash, oldPassword) {
		return ErrOldPasswordIncorrect
	}
	if VerifyPassword(u.PasswordHash, newPassword) {
		return ErrSamePassword
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, u.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// RequestPasswordReset issues a fresh one-time reset token, superseding
// any prior tokens for the user, and emails the plaintext link. The email
// send is synchronous: delivery failure is the caller's error, and the
// stored token deliberately survives it.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.ErrNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	// At most one live token per user
	if err := s.resetTokens.DeleteForUser(ctx, existing.ID); err != nil {
		return fmt.Errorf("failed to delete existing reset tokens: %w", err)
	}

	plaintext, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	if err := s.resetTokens.Store(ctx, existing.ID, plaintext); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.emailService.SendPasswordResetEmail(ctx, existing.Email, existing.Name, plaintext); err != nil {
		s.logger.Error("failed to send password reset email", "email", existing.Email, "error", err.Error())
		return ErrEmailDelivery
	}

	return nil
}

// ResetPassword consumes a reset token and sets a new password. The user
// is not logged in afterwards; no session token is issued here.
func (s *Service) ResetPassword(ctx context.Context, plaintextToken, newPassword string) error {
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	rt, err := s.resetTokens.FindValid(ctx, plaintextToken)
	if err != nil {
		if errors.Is(err, ErrResetTokenNotFound) {
			return ErrResetTokenNotFound
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}
	if rt.Expired() {
		return ErrResetTokenNotFound
	}

	existing, err := s.users.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.ErrNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if VerifyPassword(existing.PasswordHash, newPassword) {
		return ErrSamePassword
	}

	// Claim before writing the password so a concurrent consumer of the
	// same token cannot reset twice
	if err := s.resetTokens.Claim(ctx, rt.ID); err != nil {
		return err
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, existing.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// generateResetToken creates a cryptographically secure random token.
// The plaintext is emailed and never stored.
func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
