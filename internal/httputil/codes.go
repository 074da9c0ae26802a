package httputil

// Machine-readable error codes returned alongside error messages.
// Clients branch on these, never on the human-readable text.
const (
	// Request shape
	CodeInvalidRequestBody = "invalid_request_body"
	CodeMissingFields      = "missing_required_fields"

	// Validation
	CodeInvalidEmailFormat = "invalid_email_format"
	CodePasswordRequired   = "password_required"
	CodePasswordTooShort   = "password_too_short"
	CodePasswordTooWeak    = "password_too_weak"
	CodeSamePassword       = "same_password"
	CodeBioTooLong         = "bio_too_long"
	CodeInvalidQuantity    = "invalid_quantity"
	CodeInvalidPrice       = "invalid_price"

	// Auth
	CodeInvalidCredentials = "invalid_credentials"
	CodeMissingAuth        = "missing_authentication"
	CodeInvalidAuthHeader  = "invalid_authorization_header"
	CodeTokenExpired       = "token_expired"
	CodeInvalidToken       = "invalid_token"
	CodeUserGone           = "user_no_longer_exists"

	// Entities
	CodeEmailAlreadyExists = "email_already_exists"
	CodeUserNotFound       = "user_not_found"
	CodeProductNotFound    = "product_not_found"
	CodeInvalidResetToken  = "invalid_or_expired_reset_token"

	// Uploads
	CodeInvalidFileType = "invalid_file_type"
	CodeFileTooLarge    = "file_too_large"
	CodeUploadFailed    = "upload_failed"

	// Infrastructure
	CodeTooManyRequests = "too_many_requests"
	CodeCooldownActive  = "cooldown_active"
	CodeEmailSendFailed = "email_send_failed"
	CodeInternalError   = "internal_error"
)
