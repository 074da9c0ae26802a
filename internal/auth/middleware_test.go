package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inventio/inventory-api/internal/httputil"
	"github.com/inventio/inventory-api/internal/user"
)

type stubTokenService struct {
	verifyFn func(tokenStr string) (*TokenClaims, error)
}

func (s *stubTokenService) CreateToken(userID primitive.ObjectID) (string, error) {
	return "", nil
}

func (s *stubTokenService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	return s.verifyFn(tokenStr)
}

type stubUserLookup struct {
	getByIDFn func(ctx context.Context, id primitive.ObjectID) (*user.User, error)
}

func (s *stubUserLookup) GetByID(ctx context.Context, id primitive.ObjectID) (*user.User, error) {
	return s.getByIDFn(ctx, id)
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

func TestRequireAuth_NoToken(t *testing.T) {
	mw := NewMiddleware(&stubTokenService{}, &stubUserLookup{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)

	mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without a token")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != httputil.CodeMissingAuth {
		t.Errorf("code = %q, want %q", code, httputil.CodeMissingAuth)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	tokens := &stubTokenService{
		verifyFn: func(tokenStr string) (*TokenClaims, error) {
			return nil, ErrExpiredToken
		},
	}
	mw := NewMiddleware(tokens, &stubUserLookup{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "stale"})

	mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with an expired token")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != httputil.CodeTokenExpired {
		t.Errorf("code = %q, want %q", code, httputil.CodeTokenExpired)
	}
}

func TestRequireAuth_CookieWinsOverHeader(t *testing.T) {
	id := primitive.NewObjectID()

	var verified string
	tokens := &stubTokenService{
		verifyFn: func(tokenStr string) (*TokenClaims, error) {
			verified = tokenStr
			return &TokenClaims{UserID: id.Hex()}, nil
		},
	}
	users := &stubUserLookup{
		getByIDFn: func(ctx context.Context, lookupID primitive.ObjectID) (*user.User, error) {
			return &user.User{ID: lookupID}, nil
		},
	}
	mw := NewMiddleware(tokens, users)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")

	mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if verified != "cookie-token" {
		t.Errorf("verified token = %q, want the cookie value", verified)
	}
}

func TestRequireAuth_BearerFallback(t *testing.T) {
	id := primitive.NewObjectID()

	tokens := &stubTokenService{
		verifyFn: func(tokenStr string) (*TokenClaims, error) {
			if tokenStr != "header-token" {
				return nil, ErrInvalidToken
			}
			return &TokenClaims{UserID: id.Hex()}, nil
		},
	}
	users := &stubUserLookup{
		getByIDFn: func(ctx context.Context, lookupID primitive.ObjectID) (*user.User, error) {
			return &user.User{ID: lookupID, Name: "Jane"}, nil
		},
	}
	mw := NewMiddleware(tokens, users)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer header-token")

	var got *user.User
	mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = user.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.ID != id {
		t.Error("resolved user not attached to the request context")
	}
}

func TestRequireAuth_DeletedUser(t *testing.T) {
	tokens := &stubTokenService{
		verifyFn: func(tokenStr string) (*TokenClaims, error) {
			return &TokenClaims{UserID: primitive.NewObjectID().Hex()}, nil
		},
	}
	users := &stubUserLookup{
		getByIDFn: func(ctx context.Context, id primitive.ObjectID) (*user.User, error) {
			return nil, user.ErrNotFound
		},
	}
	mw := NewMiddleware(tokens, users)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "valid-but-orphaned"})

	mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached for a deleted user")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != httputil.CodeUserGone {
		t.Errorf("code = %q, want %q", code, httputil.CodeUserGone)
	}
}

func TestRequireAuth_MalformedAuthorizationHeader(t *testing.T) {
	mw := NewMiddleware(&stubTokenService{}, &stubUserLookup{})

	for _, header := range []string{"Basic abc", "Bearer", "Bearer "} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)

		mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatalf("handler reached with header %q", header)
		})).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}
