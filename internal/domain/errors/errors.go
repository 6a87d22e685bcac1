package errors

import "errors"

// Error kinds. Every error leaving a service wraps exactly one of these.
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthorized     = errors.New("not authorized")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("resource not found")
	ErrEmailDelivery    = errors.New("email delivery failed")
	ErrInternalServer   = errors.New("server error")
)

var (
	ErrInvalidCredentials = wrap(ErrUnauthorized, "Invalid credentials")
	ErrNoToken            = wrap(ErrUnauthorized, "Not authorized, no token")
	ErrInvalidToken       = wrap(ErrUnauthorized, "Invalid token")
	ErrInvalidResetCode   = wrap(ErrUnauthorized, "Invalid or expired code")
	ErrWrongPassword      = wrap(ErrUnauthorized, "Current password is incorrect")

	ErrUserAlreadyExists = wrap(ErrConflict, "Email already registered")

	ErrUserNotFound = wrap(ErrNotFound, "User not found")
	ErrTaskNotFound = wrap(ErrNotFound, "Task not found")
	ErrListNotFound = wrap(ErrNotFound, "List not found")

	ErrMissingRegistration = wrap(ErrValidationFailed, "Name, email and password are required")
	ErrMissingPasswords    = wrap(ErrValidationFailed, "Current and new password are required")
	ErrPasswordTooShort    = wrap(ErrValidationFailed, "Password must be at least 6 characters")
	ErrPasswordTooLong     = wrap(ErrValidationFailed, "Password must be at most 72 bytes")
	ErrInvalidEmail        = wrap(ErrValidationFailed, "Invalid email")
	ErrInvalidName         = wrap(ErrValidationFailed, "Invalid name")
	ErrInvalidTitle        = wrap(ErrValidationFailed, "Title is required")
	ErrInvalidPriority     = wrap(ErrValidationFailed, "Priority must be Low, Medium or High")
	ErrInvalidField        = wrap(ErrValidationFailed, "Field cannot be null")
	ErrInvalidDateRange    = wrap(ErrValidationFailed, "Start and end dates are required")
	ErrInvalidDate         = wrap(ErrValidationFailed, "Invalid date")
	ErrInvalidFilter       = wrap(ErrValidationFailed, "Filter must be all, important or completed")
	ErrInvalidSort         = wrap(ErrValidationFailed, "Sort must be newest or today")
	ErrInvalidAvatar       = wrap(ErrValidationFailed, "Avatar must be an image")
	ErrAvatarTooLarge      = wrap(ErrValidationFailed, "Avatar must be at most 2MB")
	ErrBadRequest          = wrap(ErrValidationFailed, "Invalid request body")

	ErrConfigFileReadFailed  = errors.New("failed to read config file")
	ErrConfigParseFailed     = errors.New("failed to parse config file")
	ErrConfigInvalidFormat   = errors.New("invalid config value")
	ErrInvalidGzipRequest    = wrap(ErrValidationFailed, "Invalid gzip request body")
	ErrGzipCompressionFailed = errors.New("gzip compression failed")
)

// Kind is a sentinel error that carries a user facing message and the
// category it belongs to.
type Kind struct {
	kind error
	msg  string
}

func wrap(kind error, msg string) *Kind {
	return &Kind{kind: kind, msg: msg}
}

func (k *Kind) Error() string { return k.msg }

func (k *Kind) Unwrap() error { return k.kind }

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }

// Message returns the user facing message of the first Kind found in the
// chain of err, or an empty string.
func Message(err error) string {
	var k *Kind
	if errors.As(err, &k) {
		return k.msg
	}
	return ""
}
