// Package contact relays support messages from logged-in users.
package contact

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/inventio/inventory-api/internal/httputil"
	"github.com/inventio/inventory-api/internal/logging"
	"github.com/inventio/inventory-api/internal/user"
)

// EmailRelay forwards a user's message to the support inbox
type EmailRelay interface {
	SendContactEmail(ctx context.Context, senderEmail, senderName, subject, message string) error
}

// Handler contains the contact-us HTTP handler
type Handler struct {
	relay  EmailRelay
	logger *logging.Logger
}

func NewHandler(relay EmailRelay, logger *logging.Logger) *Handler {
	return &Handler{relay: relay, logger: logger}
}

// ContactRequest represents the contact-us request body
type ContactRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ContactUs relays a message from the authenticated user to support
// @Summary      Contact support
// @Description  Send a message to the support inbox. Support replies go to the caller's account email.
// @Tags         contact
// @Accept       json
// @Produce      json
// @Param        request body ContactRequest true "Subject and message"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Missing subject or message"
// @Failure      401 {object} ErrorResponse "Not authenticated"
// @Failure      500 {object} ErrorResponse "Email could not be sent"
// @Security     CookieAuth
// @Router       /contactus [post]
func (h *Handler) ContactUs(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	u, ok := user.FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid contact request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	subject := strings.TrimSpace(req.Subject)
	message := strings.TrimSpace(req.Message)
	if subject == "" || message == "" {
		httputil.RespondErrorWithCode(w, "subject and message are required", httputil.CodeMissingFields, http.StatusBadRequest)
		return
	}

	if err := h.relay.SendContactEmail(r.Context(), u.Email, u.Name, subject, message); err != nil {
		logger.Error("failed to relay contact email", "user_id", u.ID.Hex(), "error", err.Error())
		httputil.RespondErrorWithCode(w, "email could not be sent, please try again later", httputil.CodeEmailSendFailed, http.StatusInternalServerError)
		return
	}

	logger.Info("contact email sent", "user_id", u.ID.Hex())

	httputil.RespondJSON(w, map[string]string{"message": "email sent"}, http.StatusOK)
}
