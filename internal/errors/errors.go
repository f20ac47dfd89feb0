package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrUserNotFound is returned when a user lookup fails.
	ErrUserNotFound = errors.New("user not found")
	// ErrWorkspaceNotFound is returned when a workspace lookup fails.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrProjectNotFound is returned when a project lookup fails.
	ErrProjectNotFound = errors.New("project not found")
	// ErrTaskNotFound is returned when a task lookup fails.
	ErrTaskNotFound = errors.New("task not found")
	// ErrSubtaskNotFound is returned when a subtask lookup fails.
	ErrSubtaskNotFound = errors.New("subtask not found")
	// ErrCommentNotFound is returned when a comment lookup fails.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrInviteNotFound is returned when an invite token has no matching row.
	ErrInviteNotFound = errors.New("invite not found")

	// ErrValidation is returned for malformed input that passed binding.
	ErrValidation = errors.New("validation failed")
	// ErrEmailTaken is returned when registering with an email that is in use.
	ErrEmailTaken = errors.New("email already exists")
	// ErrPhoneTaken is returned when registering with a phone number that is in use.
	ErrPhoneTaken = errors.New("phone number already exists")
	// ErrInvalidCredentials is returned when the identifier or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAlreadyMember is returned when adding a user who is already a member.
	ErrAlreadyMember = errors.New("user is already a member")
	// ErrNotMember is returned when removing or updating a non-member.
	ErrNotMember = errors.New("user is not a member")
	// ErrAlreadyVerified is returned when verifying an already verified channel.
	ErrAlreadyVerified = errors.New("already verified")
	// ErrNoChannel is returned when a user has no e-mail or phone for the requested channel.
	ErrNoChannel = errors.New("no contact channel available")

	// ErrCodeAlreadySent is returned when an unexpired code exists and the caller must wait.
	ErrCodeAlreadySent = errors.New("verification code already sent, please wait before requesting a new one")
	// ErrCodeExpired is returned when the stored code has expired.
	ErrCodeExpired = errors.New("verification code has expired")
	// ErrInvalidCode is returned when no matching code exists.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrInviteExpired is returned when accepting an expired workspace invite.
	ErrInviteExpired = errors.New("invite has expired")

	// ErrUnauthorized is returned for missing, invalid or expired tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrForbidden is returned when an authenticated principal lacks permission.
	ErrForbidden = errors.New("forbidden")

	// ErrUnsupportedMedia is returned for uploads of a disallowed content type.
	ErrUnsupportedMedia = errors.New("unsupported file type")
	// ErrFileTooLarge is returned for uploads above the size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// Coded is implemented by errors that carry their own status and code.
type Coded interface {
	error
	HTTPStatus() int
	ErrorCode() string
}

type mapping struct {
	target error
	status int
	code   string
}

var mappings = []mapping{
	{ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{ErrWorkspaceNotFound, http.StatusNotFound, "WORKSPACE_NOT_FOUND"},
	{ErrProjectNotFound, http.StatusNotFound, "PROJECT_NOT_FOUND"},
	{ErrTaskNotFound, http.StatusNotFound, "TASK_NOT_FOUND"},
	{ErrSubtaskNotFound, http.StatusNotFound, "SUBTASK_NOT_FOUND"},
	{ErrCommentNotFound, http.StatusNotFound, "COMMENT_NOT_FOUND"},
	{ErrInviteNotFound, http.StatusNotFound, "INVITE_NOT_FOUND"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},

	{ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{ErrEmailTaken, http.StatusBadRequest, "EMAIL_TAKEN"},
	{ErrPhoneTaken, http.StatusBadRequest, "PHONE_TAKEN"},
	{ErrInvalidCredentials, http.StatusBadRequest, "INVALID_CREDENTIALS"},
	{ErrAlreadyMember, http.StatusBadRequest, "ALREADY_MEMBER"},
	{ErrNotMember, http.StatusBadRequest, "NOT_MEMBER"},
	{ErrAlreadyVerified, http.StatusBadRequest, "ALREADY_VERIFIED"},
	{ErrNoChannel, http.StatusBadRequest, "NO_CHANNEL"},
	{ErrCodeAlreadySent, http.StatusBadRequest, "CODE_ALREADY_SENT"},
	{ErrCodeExpired, http.StatusBadRequest, "CODE_EXPIRED"},
	{ErrInvalidCode, http.StatusBadRequest, "INVALID_CODE"},
	{ErrInviteExpired, http.StatusBadRequest, "INVITE_EXPIRED"},
	{ErrUnsupportedMedia, http.StatusBadRequest, "UNSUPPORTED_MEDIA"},
	{ErrFileTooLarge, http.StatusBadRequest, "FILE_TOO_LARGE"},

	{ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
}

// MapErrorToHTTP maps domain errors to HTTP errors. Unknown errors become a generic 500.
func MapErrorToHTTP(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var coded Coded
	if errors.As(err, &coded) {
		return NewHTTPError(coded.HTTPStatus(), coded.Error(), coded.ErrorCode())
	}

	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return NewHTTPError(m.status, m.target.Error(), m.code)
		}
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}
