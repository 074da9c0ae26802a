package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inventio/inventory-api/internal/httputil"
	"github.com/inventio/inventory-api/internal/logging"
	"github.com/inventio/inventory-api/internal/user"
)

type fakeRelay struct {
	sendFn func(ctx context.Context, senderEmail, senderName, subject, message string) error
}

func (f *fakeRelay) SendContactEmail(ctx context.Context, senderEmail, senderName, subject, message string) error {
	return f.sendFn(ctx, senderEmail, senderName, subject, message)
}

func contactRequest(t *testing.T, body string, u *user.User) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/contactus", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		req = req.WithContext(user.NewContext(req.Context(), u))
	}
	return req
}

func TestContactUs_RequiresAuth(t *testing.T) {
	h := NewHandler(&fakeRelay{}, logging.NewLogger(true))

	rec := httptest.NewRecorder()
	h.ContactUs(rec, contactRequest(t, `{"subject":"Help","message":"It broke"}`, nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestContactUs_MissingFields(t *testing.T) {
	h := NewHandler(&fakeRelay{}, logging.NewLogger(true))
	caller := &user.User{ID: primitive.NewObjectID(), Name: "Jane", Email: "jane@example.com"}

	for _, body := range []string{
		`{"subject":"","message":"It broke"}`,
		`{"subject":"Help","message":"  "}`,
		`{}`,
	} {
		rec := httptest.NewRecorder()
		h.ContactUs(rec, contactRequest(t, body, caller))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestContactUs_RelaysWithCallerIdentity(t *testing.T) {
	caller := &user.User{ID: primitive.NewObjectID(), Name: "Jane", Email: "jane@example.com"}

	var gotEmail, gotName, gotSubject, gotMessage string
	relay := &fakeRelay{
		sendFn: func(ctx context.Context, senderEmail, senderName, subject, message string) error {
			gotEmail, gotName, gotSubject, gotMessage = senderEmail, senderName, subject, message
			return nil
		},
	}
	h := NewHandler(relay, logging.NewLogger(true))

	rec := httptest.NewRecorder()
	h.ContactUs(rec, contactRequest(t, `{"subject":"Help","message":"It broke"}`, caller))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotEmail != caller.Email || gotName != caller.Name {
		t.Errorf("relayed identity = %q/%q, want the caller's", gotName, gotEmail)
	}
	if gotSubject != "Help" || gotMessage != "It broke" {
		t.Errorf("relayed content = %q/%q", gotSubject, gotMessage)
	}
}

func TestContactUs_RelayFailure(t *testing.T) {
	relay := &fakeRelay{
		sendFn: func(ctx context.Context, senderEmail, senderName, subject, message string) error {
			return errors.New("smtp unreachable")
		},
	}
	h := NewHandler(relay, logging.NewLogger(true))
	caller := &user.User{ID: primitive.NewObjectID(), Name: "Jane", Email: "jane@example.com"}

	rec := httptest.NewRecorder()
	h.ContactUs(rec, contactRequest(t, `{"subject":"Help","message":"It broke"}`, caller))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body httputil.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != httputil.CodeEmailSendFailed {
		t.Errorf("code = %q, want %q", body.Code, httputil.CodeEmailSendFailed)
	}
}
