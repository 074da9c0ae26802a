package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inventio/inventory-api/internal/httputil"
	"github.com/inventio/inventory-api/internal/logging"
)

// Bio length cap, matches the stored document validation
const maxBioLength = 250

// ProfileStore is the slice of the repository the profile handlers need
type ProfileStore interface {
	EmailTakenByOther(ctx context.Context, email string, selfID primitive.ObjectID) (bool, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*User, error)
}

// Handler contains HTTP handlers for profile endpoints
type Handler struct {
	repo   ProfileStore
	logger *logging.Logger
}

func NewHandler(repo ProfileStore, logger *logging.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// UpdateUserRequest represents the profile update request body.
// Omitted or empty fields keep their current values.
type UpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Bio   string `json:"bio"`
	Photo string `json:"photo"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetUser returns the authenticated user's profile
// @Summary      Get current user
// @Description  Return the profile of the authenticated user
// @Tags         users
// @Produce      json
// @Success      200 {object} Profile
// @Failure      401 {object} ErrorResponse "Not authenticated"
// @Security     CookieAuth
// @Router       /users/getuser [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, ok := FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	httputil.RespondJSON(w, u.PublicProfile(), http.StatusOK)
}

// UpdateUser applies a partial profile update
// @Summary      Update profile
// @Description  Update any of name, email, phone, bio and photo. Empty or omitted fields are left unchanged.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body UpdateUserRequest true "Fields to update"
// @Success      200 {object} Profile
// @Failure      400 {object} ErrorResponse "Validation error"
// @Failure      401 {object} ErrorResponse "Not authenticated"
// @Failure      409 {object} ErrorResponse "Email already in use"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Security     CookieAuth
// @Router       /users/updateuser [patch]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	u, ok := FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid update user request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(req.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			logger.Warn("profile update failed: invalid email format")
			httputil.RespondErrorWithCode(w, "invalid email format", httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
			return
		}
		email = strings.ToLower(email)

		taken, err := h.repo.EmailTakenByOther(r.Context(), email, u.ID)
		if err != nil {
			logger.Error("profile update failed: email check", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to update profile", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}
		if taken {
			logger.Warn("profile update failed: email already in use")
			httputil.RespondErrorWithCode(w, "email has already been registered", httputil.CodeEmailAlreadyExists, http.StatusConflict)
			return
		}
	}

	// Characters, not bytes; a multi-byte bio must not be cut short
	if utf8.RuneCountInString(req.Bio) > maxBioLength {
		logger.Warn("profile update failed: bio too long")
		httputil.RespondErrorWithCode(w, "bio must not exceed 250 characters", httputil.CodeBioTooLong, http.StatusBadRequest)
		return
	}

	updated, err := h.repo.UpdateProfile(r.Context(), u.ID, ProfileUpdate{
		Name:  strings.TrimSpace(req.Name),
		Email: email,
		Phone: strings.TrimSpace(req.Phone),
		Bio:   req.Bio,
		Photo: strings.TrimSpace(req.Photo),
	})
	if err != nil {
		// The unique index can still reject a racing email change
		if errors.Is(err, ErrDuplicateEmail) {
			httputil.RespondErrorWithCode(w, "email has already been registered", httputil.CodeEmailAlreadyExists, http.StatusConflict)
			return
		}
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("profile update failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to update profile", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("profile updated", "user_id", u.ID.Hex())

	httputil.RespondJSON(w, updated.PublicProfile(), http.StatusOK)
}
