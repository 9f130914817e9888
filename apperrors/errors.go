package apperrors

import "errors"

var (
	// ErrDuplicateEmail signals that the email is already registered for the actor kind.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrNotFound signals a missing aggregate or reference.
	ErrNotFound = errors.New("not found")
	// ErrAccountNotFound signals that no account matches the login email.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredential signals a password mismatch.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrInvalidCredentialFormat signals a stored digest that cannot be parsed.
	ErrInvalidCredentialFormat = errors.New("invalid credential format")
	// ErrInvalidTimeFormat signals a schedule time that is not HH:MM.
	ErrInvalidTimeFormat = errors.New("time must be in HH:MM format")
	// ErrPasswordTooLong signals a password longer than bcrypt accepts (72 bytes).
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedInput signals a non-numeric or non-positive identifier.
	ErrMalformedInput = errors.New("malformed input")
	// ErrSpeciesNotFound signals a species reference with no matching record.
	ErrSpeciesNotFound = errors.New("species not found")
)
