package auth

// UnauthorizedError represents the errors returned if the user is not authorized.
type UnauthorizedError struct{}

func NewUnauthorizedError() *UnauthorizedError {
	return &UnauthorizedError{}
}

func (v UnauthorizedError) Error() string {
	return "not authorized"
}

// Code identifies a known authentication failure. Handlers translate codes into
// user-displayable messages through a fixed table.
type Code string

const (
	CodeInvalidEmail    Code = "invalid-email"
	CodeWrongPassword   Code = "wrong-password"
	CodeEmailInUse      Code = "email-already-in-use"
	CodeWeakPassword    Code = "weak-password"
	CodeTooManyRequests Code = "too-many-requests"
	CodeNetworkFailure  Code = "network-request-failed"
)

var messages = map[Code]string{
	CodeInvalidEmail:    "the email address is not valid",
	CodeWrongPassword:   "wrong email or password",
	CodeEmailInUse:      "the email address is already in use",
	CodeWeakPassword:    "the password must have at least 6 characters",
	CodeTooManyRequests: "too many attempts, try again later",
	CodeNetworkFailure:  "a network error occurred, try again",
}

// messageFor returns the user-displayable message for the given code.
func messageFor(code Code) string {
	if message, known := messages[code]; known {
		return message
	}
	return "an unexpected error occurred"
}

// AccountError represents a failed account operation carrying a translated message.
type AccountError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// NewAccountError creates a new AccountError for the given code.
func NewAccountError(code Code) *AccountError {
	return &AccountError{Code: code, Message: messageFor(code)}
}

func (e AccountError) Error() string {
	return e.Message
}
