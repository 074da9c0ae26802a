package auth

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testSecret = []byte("test-signing-secret")

func TestNewJWTService_EmptySecret(t *testing.T) {
	if _, err := NewJWTService(nil, time.Hour); err == nil {
		t.Fatal("expected an error for an empty secret")
	}
}

func TestJWTService_CreateVerifyRoundtrip(t *testing.T) {
	svc, err := NewJWTService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}

	userID := primitive.NewObjectID()
	token, err := svc.CreateToken(userID)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}

	if claims.UserID != userID.Hex() {
		t.Errorf("claims.UserID = %q, want %q", claims.UserID, userID.Hex())
	}
	if !claims.ExpiresAt.After(time.Now()) {
		t.Error("token expires in the past")
	}
}

func TestJWTService_ExpiredToken(t *testing.T) {
	svc, err := NewJWTService(testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}

	token, err := svc.CreateToken(primitive.NewObjectID())
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("VerifyToken = %v, want ErrExpiredToken", err)
	}
}

func TestJWTService_WrongSecret(t *testing.T) {
	issuer, err := NewJWTService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}
	verifier, err := NewJWTService([]byte("a-different-secret"), time.Hour)
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}

	token, err := issuer.CreateToken(primitive.NewObjectID())
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, err := verifier.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken = %v, want ErrInvalidToken", err)
	}
}

func TestJWTService_GarbageToken(t *testing.T) {
	svc, err := NewJWTService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("VerifyToken(%q) = %v, want ErrInvalidToken", token, err)
		}
	}
}
