package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inventio/inventory-api/internal/logging"
	"github.com/inventio/inventory-api/internal/user"
)

type mockUserStore struct {
	createFn         func(ctx context.Context, u *user.User) (*user.User, error)
	getByEmailFn     func(ctx context.Context, email string) (*user.User, error)
	getByIDFn        func(ctx context.Context, id primitive.ObjectID) (*user.User, error)
	updatePasswordFn func(ctx context.Context, id primitive.ObjectID, passwordHash string) error
}

func (m *mockUserStore) Create(ctx context.Context, u *user.User) (*user.User, error) {
	return m.createFn(ctx, u)
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return m.getByEmailFn(ctx, email)
}

func (m *mockUserStore) GetByID(ctx context.Context, id primitive.ObjectID) (*user.User, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockUserStore) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	return m.updatePasswordFn(ctx, id, passwordHash)
}

type mockResetTokenStore struct {
	deleteForUserFn func(ctx context.Context, userID primitive.ObjectID) error
	storeFn         func(ctx context.Context, userID primitive.ObjectID, token string) error
	findValidFn     func(ctx context.Context, token string) (*ResetToken, error)
	claimFn         func(ctx context.Context, id primitive.ObjectID) error
}

func (m *mockResetTokenStore) DeleteForUser(ctx context.Context, userID primitive.ObjectID) error {
	return m.deleteForUserFn(ctx, userID)
}

func (m *mockResetTokenStore) Store(ctx context.Context, userID primitive.ObjectID, token string) error {
	return m.storeFn(ctx, userID, token)
}

func (m *mockResetTokenStore) FindValid(ctx context.Context, token string) (*ResetToken, error) {
	return m.findValidFn(ctx, token)
}

func (m *mockResetTokenStore) Claim(ctx context.Context, id primitive.ObjectID) error {
	return m.claimFn(ctx, id)
}

type mockEmailService struct {
	sendFn func(ctx context.Context, toEmail, toName, token string) error
}

func (m *mockEmailService) SendPasswordResetEmail(ctx context.Context, toEmail, toName, token string) error {
	return m.sendFn(ctx, toEmail, toName, token)
}

func testTokenService(t *testing.T) TokenService {
	t.Helper()
	svc, err := NewJWTService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}
	return svc
}

func testLogger() *logging.Logger {
	return logging.NewLogger(true)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func TestService_Register_Validation(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
		wantErr  error
	}{
		{
			name:     "missing name",
			userName: "   ",
			email:    "jane@example.com",
			password: "Passw0rd!",
			wantErr:  ErrNameRequired,
		},
		{
			name:     "missing email",
			userName: "Jane",
			email:    "",
			password: "Passw0rd!",
			wantErr:  ErrEmailRequired,
		},
		{
			name:     "malformed email",
			userName: "Jane",
			email:    "not-an-email",
			password: "Passw0rd!",
			wantErr:  ErrInvalidEmailFormat,
		},
		{
			name:     "weak password",
			userName: "Jane",
			email:    "jane@example.com",
			password: "password",
			wantErr:  ErrPasswordTooWeak,
		},
	}

	svc := NewService(&mockUserStore{}, &mockResetTokenStore{}, testTokenService(t), &mockEmailService{}, testLogger())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.userName, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Register_Success(t *testing.T) {
	var created *user.User
	users := &mockUserStore{
		createFn: func(ctx context.Context, u *user.User) (*user.User, error) {
			u.ID = primitive.NewObjectID()
			created = u
			return u, nil
		},
	}

	svc := NewService(users, &mockResetTokenStore{}, testTokenService(t), &mockEmailService{}, testLogger())

	result, err := svc.Register(context.Background(), "Jane", "Jane@Example.COM", "Passw0rd!")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if created.Email != "jane@example.com" {
		t.Errorf("stored email = %q, want lower-cased", created.Email)
	}
	if created.PasswordHash == "Passw0rd!" {
		t.Error("password stored in plaintext")
	}
	if !VerifyPassword(created.PasswordHash, "Passw0rd!") {
		t.Error("stored hash does not verify against the password")
	}
	if result.Token == "" {
		t.Error("no session token issued")
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	users := &mockUserStore{
		createFn: func(ctx context.Context, u *user.User) (*user.User, error) {
			return nil, user.ErrDuplicateEmail
		},
	}

	svc := NewService(users, &mockResetTokenStore{}, testTokenService(t), &mockEmailService{}, testLogger())

	_, err := svc.Register(context.Background(), "Jane", "jane@example.com", "Passw0rd!")
	if !errors.Is(err, user.ErrDuplicateEmail) {
		t.Errorf("Register = %v, want ErrDuplicateEmail", err)
	}
}

func TestService_Register_CaseInsensitiveDuplicate(t *testing.T) {
	// The store enforces uniqueness on the exact stored value; registrations
	// that differ only in case must still collide because the service
	// normalizes emails before persisting.
	stored := map[string]bool{}
	users := &mockUserStore{
		createFn: func(ctx context.Context, u *user.User) (*user.User, error) {
			if stored[u.Email] {
				return nil, user.ErrDuplicateEmail
			}
			stored[u.Email] = true
			u.ID = primitive.NewObjectID()
			return u, nil
		},
	}

	svc := NewService(users, &mockResetTokenStore{}, testTokenService(t), &mockEmailService{}, testLogger())

	if _, err := svc.Register(context.Background(), "Jane", "Jane@Example.COM", "Passw0rd!"); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	_, err := svc.Register(context.Background(), "Janet", "jane@example.com", "Passw0rd!")
	if !errors.Is(err, user.ErrDuplicateEmail) {
		t.Errorf("second Register = %v, want ErrDuplicateEmail", err)
	}
}

func TestService_Login_UniformFailure(t *testing.T) {
	hash := mustHash(t, "Passw0rd!")
	existing := &user.User{ID: primitive.NewObjectID(), Email: "jane@example.com", PasswordHash: hash}

	users := &mockUserStore{
		getByEmailFn: func(ctx context.Context, email string) (*user.User, error) {
			if email == existing.Email {
				return existing, nil
			}
			return nil, user.ErrNotFound
		},
	}

	svc := NewService(users, &mockResetTokenStore{}, testTokenService(t), &mockEmailService{}, testLogger())

	// Unknown account and wrong password must be indistinguishable
	_, unknownErr := svc.Login(context.Background(), "nobody@example.com", "Passw0rd!")
	_, wrongPassErr := svc.Login(context.Background(), "jane@example.com", "WrongPass1!")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Errorf("unknown email: %v, want ErrInvalidCredentials", unknownErr)
	}
	if !errors.Is(wrongPassErr, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v, want ErrInvalidCredentials", wrongPassErr)
	}
}

func TestService_Login_Success(t *testing.T) {
	existing := &user.User{
		ID:           primitive.NewObjectID(),
		Email:        "jane@example.com",
		PasswordHash: mustHash(t, "Passw0rd!"),
	}

	users := &mockUserStore{
		getByEmailFn: func(ctx context.Context, email string) (*user.User, error) {
			return existing, nil
		},
	}

	tokens := testTokenService(t)
	svc := NewService(users, &mockResetTokenStore{}, tokens, &mockEmailService{}, testLogger())

	result, err := svc.Login(context.Background(), "jane@example.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := tokens.VerifyToken(result.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.UserID != existing.ID.Hex() {
		t.Errorf("token subject = %q, want %q", claims.UserID, existing.ID.Hex())
	}
}

func TestService_ChangePassword(t *testing.T) {
	current := "Passw0rd!"
	u := &user.User{ID: primitive.NewObjectID(), PasswordHash: mustHash(t, current)}

	var updatedHash string
	users := &mockUserStore{
		updatePasswordFn: func(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
			updatedHash = passwordHash
			return nil
		},
	}

	svc := NewService(users, &mockResetTokenStore{}, testTokenService(t), &mockEmailService{}, testLogger())

	tests := []struct {
		name    string
		oldPass string
		newPass string
		wantErr error
	}{
		{
			name:    "missing old password",
			oldPass: "",
			newPass: "N3w-Passw0rd!",
			wantErr: ErrPasswordRequired,
		},
		{
			name:    "wrong old password",
			oldPass: "WrongPass1!",
			newPass: "N3w-Passw0rd!",
			wantErr: ErrOldPasswordIncorrect,
		},
		{
			name:    "weak new password",
			oldPass: current,
			newPass: "password",
			wantErr: ErrPasswordTooWeak,
		},
		{
			name:    "new equals current",
			oldPass: current,
			newPass: current,
			wantErr: ErrSamePassword,
		},
		{
			name:    "success",
			oldPass: current,
			newPass: "N3w-Passw0rd!",
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ChangePassword(context.Background(), u, tt.oldPass, tt.newPass)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ChangePassword = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if updatedHash == "" || !VerifyPassword(updatedHash, "N3w-Passw0rd!") {
		t.Error("updated hash does not verify against the new password")
	}
}

func TestService_RequestPasswordReset_UnknownEmail(t *testing.T) {
	users := &mockUserStore{
		getByEmailFn: func(ctx context.Context, email string) (*user.User, error) {
			return nil, user.ErrNotFound
		},
	}

	svc := NewService(users, &mockResetTokenStore{}, testTokenService(t), &mockEmailService{}, testLogger())

	err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	if !errors.Is(err, user.ErrNotFound) {
		t.Errorf("RequestPasswordReset = %v, want user.ErrNotFound", err)
	}
}

func TestService_RequestPasswordReset_SupersedesAndEmails(t *testing.T) {
	existing := &user.User{ID: primitive.NewObjectID(), Name: "Jane", Email: "jane@example.com"}

	users := &mockUserStore{
		getByEmailFn: func(ctx context.Context, email string) (*user.User, error) {
			return existing, nil
		},
	}

	var deleted bool
	var storedToken string
	resetTokens := &mockResetTokenStore{
		deleteForUserFn: func(ctx context.Context, userID primitive.ObjectID) error {
			deleted = true
			return nil
		},
		storeFn: func(ctx context.Context, userID primitive.ObjectID, token string) error {
			if !deleted {
				t.Error("new token stored before prior tokens were deleted")
			}
			storedToken = token
			return nil
		},
	}

	var emailedToken string
	emails := &mockEmailService{
		sendFn: func(ctx context.Context, toEmail, toName, token string) error {
			emailedToken = token
			return nil
		},
	}

	svc := NewService(users, resetTokens, testTokenService(t), emails, testLogger())

	if err := svc.RequestPasswordReset(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}

	if storedToken == "" {
		t.Fatal("no token stored")
	}
	if emailedToken != storedToken {
		t.Error("emailed token differs from the stored one")
	}
	if len(storedToken) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(storedToken))
	}
}

func TestService_RequestPasswordReset_EmailFailure(t *testing.T) {
	existing := &user.User{ID: primitive.NewObjectID(), Name: "Jane", Email: "jane@example.com"}

	users := &mockUserStore{
		getByEmailFn: func(ctx context.Context, email string) (*user.User, error) {
			return existing, nil
		},
	}

	var stored bool
	resetTokens := &mockResetTokenStore{
		deleteForUserFn: func(ctx context.Context, userID primitive.ObjectID) error { return nil },
		storeFn: func(ctx context.Context, userID primitive.ObjectID, token string) error {
			stored = true
			return nil
		},
	}

	emails := &mockEmailService{
		sendFn: func(ctx context.Context, toEmail, toName, token string) error {
			return errors.New("smtp unreachable")
		},
	}

	svc := NewService(users, resetTokens, testTokenService(t), emails, testLogger())

	err := svc.RequestPasswordReset(context.Background(), "jane@example.com")
	if !errors.Is(err, ErrEmailDelivery) {
		t.Errorf("RequestPasswordReset = %v, want ErrEmailDelivery", err)
	}
	// The token stays stored even when the email fails
	if !stored {
		t.Error("token was not stored before the send attempt")
	}
}

func TestService_ResetPassword(t *testing.T) {
	current := "Passw0rd!"
	existing := &user.User{ID: primitive.NewObjectID(), PasswordHash: mustHash(t, current)}
	tokenID := primitive.NewObjectID()

	users := &mockUserStore{
		getByIDFn: func(ctx context.Context, id primitive.ObjectID) (*user.User, error) {
			return existing, nil
		},
		updatePasswordFn: func(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
			existing.PasswordHash = passwordHash
			return nil
		},
	}

	var claimed bool
	resetTokens := &mockResetTokenStore{
		findValidFn: func(ctx context.Context, token string) (*ResetToken, error) {
			if token != "valid-token" {
				return nil, ErrResetTokenNotFound
			}
			return &ResetToken{
				ID:        tokenID,
				UserID:    existing.ID,
				ExpiresAt: time.Now().Add(ResetTokenTTL),
			}, nil
		},
		claimFn: func(ctx context.Context, id primitive.ObjectID) error {
			claimed = true
			return nil
		},
	}

	svc := NewService(users, resetTokens, testTokenService(t), &mockEmailService{}, testLogger())

	t.Run("unknown token", func(t *testing.T) {
		err := svc.ResetPassword(context.Background(), "bogus", "N3w-Passw0rd!")
		if !errors.Is(err, ErrResetTokenNotFound) {
			t.Errorf("ResetPassword = %v, want ErrResetTokenNotFound", err)
		}
	})

	t.Run("new password equals current", func(t *testing.T) {
		err := svc.ResetPassword(context.Background(), "valid-token", current)
		if !errors.Is(err, ErrSamePassword) {
			t.Errorf("ResetPassword = %v, want ErrSamePassword", err)
		}
		// A rejected reset must leave the token usable
		if claimed {
			t.Error("token was claimed on a failed reset")
		}
	})

	t.Run("success consumes the token", func(t *testing.T) {
		if err := svc.ResetPassword(context.Background(), "valid-token", "N3w-Passw0rd!"); err != nil {
			t.Fatalf("ResetPassword: %v", err)
		}
		if !claimed {
			t.Error("token was not claimed")
		}
		if !VerifyPassword(existing.PasswordHash, "N3w-Passw0rd!") {
			t.Error("password was not updated")
		}
	})

	t.Run("stored expiry already passed", func(t *testing.T) {
		claimed = false
		resetTokens.findValidFn = func(ctx context.Context, token string) (*ResetToken, error) {
			// A store without an expiry filter could hand back a stale
			// record; the service must reject it on its own
			return &ResetToken{
				ID:        tokenID,
				UserID:    existing.ID,
				ExpiresAt: time.Now().Add(-time.Hour),
			}, nil
		}
		err := svc.ResetPassword(context.Background(), "valid-token", "St@le-Pass1")
		if !errors.Is(err, ErrResetTokenNotFound) {
			t.Errorf("ResetPassword = %v, want ErrResetTokenNotFound", err)
		}
		if claimed {
			t.Error("expired token was claimed")
		}
		if VerifyPassword(existing.PasswordHash, "St@le-Pass1") {
			t.Error("password was updated with an expired token")
		}
	})

	t.Run("lost claim race", func(t *testing.T) {
		resetTokens.findValidFn = func(ctx context.Context, token string) (*ResetToken, error) {
			return &ResetToken{
				ID:        tokenID,
				UserID:    existing.ID,
				ExpiresAt: time.Now().Add(ResetTokenTTL),
			}, nil
		}
		resetTokens.claimFn = func(ctx context.Context, id primitive.ObjectID) error {
			return ErrResetTokenNotFound
		}
		err := svc.ResetPassword(context.Background(), "valid-token", "An0ther-Pass!")
		if !errors.Is(err, ErrResetTokenNotFound) {
			t.Errorf("ResetPassword = %v, want ErrResetTokenNotFound", err)
		}
	})
}
