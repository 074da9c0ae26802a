package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inventio/inventory-api/internal/httputil"
	"github.com/inventio/inventory-api/internal/logging"
)

type fakeProfileStore struct {
	emailTakenFn    func(ctx context.Context, email string, selfID primitive.ObjectID) (bool, error)
	updateProfileFn func(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*User, error)
}

func (f *fakeProfileStore) EmailTakenByOther(ctx context.Context, email string, selfID primitive.ObjectID) (bool, error) {
	return f.emailTakenFn(ctx, email, selfID)
}

func (f *fakeProfileStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*User, error) {
	return f.updateProfileFn(ctx, id, upd)
}

func updateRequest(t *testing.T, body map[string]string, u *User) *http.Request {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPatch, "/api/users/updateuser", strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		req = req.WithContext(NewContext(req.Context(), u))
	}
	return req
}

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body httputil.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

func TestUpdateUser_BioLengthCountsCharacters(t *testing.T) {
	caller := &User{ID: primitive.NewObjectID(), Name: "Jane", Email: "jane@example.com"}

	store := &fakeProfileStore{
		updateProfileFn: func(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*User, error) {
			caller.Bio = upd.Bio
			return caller, nil
		},
	}
	h := NewHandler(store, logging.NewLogger(true))

	t.Run("250 multi-byte characters accepted", func(t *testing.T) {
		// Two bytes per rune, so a byte count would reject this
		bio := strings.Repeat("é", 250)

		rec := httptest.NewRecorder()
		h.UpdateUser(rec, updateRequest(t, map[string]string{"bio": bio}, caller))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if caller.Bio != bio {
			t.Error("bio was not persisted")
		}
	})

	t.Run("251 characters rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.UpdateUser(rec, updateRequest(t, map[string]string{"bio": strings.Repeat("é", 251)}, caller))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if code := decodeCode(t, rec); code != httputil.CodeBioTooLong {
			t.Errorf("code = %q, want %q", code, httputil.CodeBioTooLong)
		}
	})
}

func TestUpdateUser_EmailTakenByOther(t *testing.T) {
	caller := &User{ID: primitive.NewObjectID(), Name: "Jane", Email: "jane@example.com"}

	store := &fakeProfileStore{
		emailTakenFn: func(ctx context.Context, email string, selfID primitive.ObjectID) (bool, error) {
			return true, nil
		},
	}
	h := NewHandler(store, logging.NewLogger(true))

	rec := httptest.NewRecorder()
	h.UpdateUser(rec, updateRequest(t, map[string]string{"email": "taken@example.com"}, caller))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := decodeCode(t, rec); code != httputil.CodeEmailAlreadyExists {
		t.Errorf("code = %q, want %q", code, httputil.CodeEmailAlreadyExists)
	}
}

func TestUpdateUser_RequiresAuth(t *testing.T) {
	h := NewHandler(&fakeProfileStore{}, logging.NewLogger(true))

	rec := httptest.NewRecorder()
	h.UpdateUser(rec, updateRequest(t, map[string]string{"name": "Jane"}, nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
