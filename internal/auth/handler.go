package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inventio/inventory-api/internal/httputil"
	"github.com/inventio/inventory-api/internal/logging"
	"github.com/inventio/inventory-api/internal/ratelimit"
	"github.com/inventio/inventory-api/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service       *Service
	rateLimiter   *ratelimit.Limiter
	logger        *logging.Logger
	isProduction  bool
	tokenDuration time.Duration
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, logger *logging.Logger, isProduction bool, tokenDuration time.Duration) *Handler {
	return &Handler{
		service:       service,
		rateLimiter:   rateLimiter,
		logger:        logger,
		isProduction:  isProduction,
		tokenDuration: tokenDuration,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents the password change request body
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	Password    string `json:"password"`
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// AuthResponse represents an authenticated user in API responses.
// The session token is duplicated in the body for non-browser clients
// that cannot use the cookie.
type AuthResponse struct {
	user.Profile
	Token string `json:"token"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an account and start a session. The session token is set as an HTTP-only cookie and returned in the body.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} AuthResponse
// @Failure      400 {object} ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} ErrorResponse "Email already in use"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /users/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "register")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for register", "ip", ip)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "register"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	result, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			logger.Warn("registration failed: email already in use")
			respondError(w, "email has already been registered", httputil.CodeEmailAlreadyExists, http.StatusConflict)
			return
		}
		if code, ok := validationCode(err); ok {
			logger.Warn("registration failed: validation error", "error", err.Error())
			respondError(w, err.Error(), code, http.StatusBadRequest)
			return
		}
		logger.Error("registration failed: internal error", "error", err.Error())
		respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user registered successfully", "user_id", result.User.ID.Hex())

	SetAuthCookie(w, result.Token, h.isProduction, h.tokenDuration)
	respondJSON(w, AuthResponse{
		Profile: result.User.PublicProfile(),
		Token:   result.Token,
	}, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate and start a session. The session token is set as an HTTP-only cookie and returned in the body.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} AuthResponse
// @Failure      400 {object} ErrorResponse "Invalid request body"
// @Failure      401 {object} ErrorResponse "Invalid credentials"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /users/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "login")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for login", "ip", ip)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "login"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		if code, ok := validationCode(err); ok {
			logger.Warn("login failed: validation error", "error", err.Error())
			respondError(w, err.Error(), code, http.StatusBadRequest)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in successfully", "user_id", result.User.ID.Hex())

	SetAuthCookie(w, result.Token, h.isProduction, h.tokenDuration)
	respondJSON(w, AuthResponse{
		Profile: result.User.PublicProfile(),
		Token:   result.Token,
	}, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  End the session by expiring the session cookie. The token itself is not revoked server-side.
// @Tags         users
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /users/logout [get]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ClearAuthCookie(w, h.isProduction)

	logger.Info("user logged out")

	respondJSON(w, map[string]string{"message": "successfully logged out"}, http.StatusOK)
}

// LoginStatus reports whether the caller holds a live session
// @Summary      Login status
// @Description  Returns true when the request carries a verifiable, unexpired session token; false otherwise. Never an error.
// @Tags         users
// @Produce      json
// @Success      200 {boolean} boolean
// @Router       /users/loggedin [get]
func (h *Handler) LoginStatus(w http.ResponseWriter, r *http.Request) {
	token, err := GetTokenFromCookie(r)
	if err != nil {
		respondJSON(w, false, http.StatusOK)
		return
	}

	respondJSON(w, h.service.LoginStatus(token), http.StatusOK)
}

// ChangePassword handles password change for the authenticated user
// @Summary      Change password
// @Description  Replace the caller's password after verifying the old one
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body ChangePasswordRequest true "Old and new passwords"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Validation error"
// @Failure      401 {object} ErrorResponse "Old password incorrect or not authenticated"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Security     CookieAuth
// @Router       /users/changepassword [patch]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	u, ok := user.FromContext(r.Context())
	if !ok {
		respondError(w, "Not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid change password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := h.service.ChangePassword(r.Context(), u, req.OldPassword, req.Password); err != nil {
		if errors.Is(err, ErrOldPasswordIncorrect) {
			logger.Warn("password change failed: old password incorrect", "user_id", u.ID.Hex())
			respondError(w, err.Error(), httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		if errors.Is(err, ErrSamePassword) {
			logger.Warn("password change failed: same password", "user_id", u.ID.Hex())
			respondError(w, err.Error(), httputil.CodeSamePassword, http.StatusBadRequest)
			return
		}
		if code, ok := validationCode(err); ok {
			logger.Warn("password change failed: validation error", "error", err.Error())
			respondError(w, err.Error(), code, http.StatusBadRequest)
			return
		}
		logger.Error("password change failed: internal error", "error", err.Error())
		respondError(w, "failed to change password", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("password changed successfully", "user_id", u.ID.Hex())

	respondJSON(w, map[string]string{"message": "password changed successfully"}, http.StatusOK)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Email a one-time password reset link valid for 30 minutes. Any previously issued link is invalidated.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email address"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Invalid request body"
// @Failure      404 {object} ErrorResponse "No account with that email"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Email could not be sent"
// @Router       /users/forgotpassword [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimit(r.Context(), ip)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), req.Email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
	} else if onCooldown {
		logger.Warn("email on cooldown", "email", req.Email)
		respondError(w, "please wait before requesting another reset", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return
	}

	if err := h.rateLimiter.RecordIPRequest(r.Context(), ip); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			logger.Warn("forgot password failed: user not found", "email", req.Email)
			respondError(w, "user does not exist", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		if errors.Is(err, ErrEmailRequired) {
			respondError(w, err.Error(), httputil.CodeMissingFields, http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrEmailDelivery) {
			respondError(w, err.Error(), httputil.CodeEmailSendFailed, http.StatusInternalServerError)
			return
		}
		logger.Error("forgot password failed: internal error", "error", err.Error())
		respondError(w, "failed to process reset request", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	if err := h.rateLimiter.SetEmailCooldown(r.Context(), req.Email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	logger.Info("password reset email sent", "email", req.Email)

	respondJSON(w, map[string]string{"message": "reset email sent"}, http.StatusOK)
}

// ResetPassword handles password reset with a token from the email link
// @Summary      Reset password
// @Description  Set a new password using the one-time token from the reset email. The token is consumed on success.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        resetToken path string true "Reset token from the email link"
// @Param        request body ResetPasswordRequest true "New password"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Validation error"
// @Failure      404 {object} ErrorResponse "Invalid or expired reset token"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /users/resetpassword/{resetToken} [put]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := chi.URLParam(r, "resetToken")

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := h.service.ResetPassword(r.Context(), token, req.Password); err != nil {
		if errors.Is(err, ErrResetTokenNotFound) || errors.Is(err, user.ErrNotFound) {
			logger.Warn("password reset failed: invalid or expired token")
			respondError(w, "invalid or expired reset token", httputil.CodeInvalidResetToken, http.StatusNotFound)
			return
		}
		if errors.Is(err, ErrSamePassword) {
			logger.Warn("password reset failed: same password")
			respondError(w, err.Error(), httputil.CodeSamePassword, http.StatusBadRequest)
			return
		}
		if code, ok := validationCode(err); ok {
			logger.Warn("password reset failed: validation error", "error", err.Error())
			respondError(w, err.Error(), code, http.StatusBadRequest)
			return
		}
		logger.Error("password reset failed: internal error", "error", err.Error())
		respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("password reset successfully")

	respondJSON(w, map[string]string{
		"message": "password reset successful, please login",
	}, http.StatusOK)
}

// validationCode maps input validation sentinels to their error codes
func validationCode(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrEmailRequired):
		return httputil.CodeMissingFields, true
	case errors.Is(err, ErrInvalidEmailFormat):
		return httputil.CodeInvalidEmailFormat, true
	case errors.Is(err, ErrPasswordRequired):
		return httputil.CodePasswordRequired, true
	case errors.Is(err, ErrPasswordTooShort):
		return httputil.CodePasswordTooShort, true
	case errors.Is(err, ErrPasswordTooWeak):
		return httputil.CodePasswordTooWeak, true
	}
	return "", false
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port"
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
