package identity

import "github.com/cryptoearn/cryptoearn/internal/apperr"

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var (
	// ErrDuplicateIdentity is returned when the email is already registered.
	ErrDuplicateIdentity = apperr.New(apperr.KindDuplicateIdentity, "duplicate_identity", "User already exists")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = apperr.New(apperr.KindInvalidCredentials, "invalid_credentials", "Invalid credentials")
	// ErrNotFound is returned by lookups for an unknown account.
	ErrNotFound = apperr.New(apperr.KindNotFound, "user_not_found", "User not found")

	ErrEmailRequired    = apperr.New(apperr.KindValidation, "email_required", "Email is required")
	ErrPasswordRequired = apperr.New(apperr.KindValidation, "password_required", "Password is required")
	ErrPasswordTooLong  = apperr.New(apperr.KindValidation, "password_too_long", "Password must be at most 72 bytes")
)
