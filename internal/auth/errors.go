package auth

import "errors"

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("inactive account")
	ErrInvalidName        = errors.New("name too long")
	ErrFieldTooLong       = errors.New("field too long")
	ErrInvalidVoice       = errors.New("invalid voice name")
	ErrInvalidPreferences = errors.New("invalid preferences")
)

// PasswordError reports the first password policy rule a candidate breaks.
type PasswordError struct {
	Message string
}

func (e *PasswordError) Error() string { return e.Message }
