package endpoint

import (
	"errors"

	"vetcare/apperrors"
)

// Response is the result of every operation. Exactly one of Data or Error is
// set. It encodes as {message, data} or {message, error}.
type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	// Kind is for the transport and is never encoded.
	Kind Kind `json:"-"`
}

// OK reports whether the operation succeeded.
func (r Response) OK() bool {
	return r.Kind == KindOK
}

// Kind classifies a failure so a transport can choose a status code.
type Kind string

const (
	KindOK           Kind = "ok"
	KindDuplicate    Kind = "duplicate"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindInvalidInput Kind = "invalid_input"
	KindInternal     Kind = "internal"
)

var kinds = []struct {
	err     error
	kind    Kind
	message string
}{
	{apperrors.ErrDuplicateEmail, KindDuplicate, "Email already in use"},
	{apperrors.ErrAccountNotFound, KindUnauthorized, "Account not found"},
	{apperrors.ErrInvalidCredential, KindUnauthorized, "Incorrect password"},
	{apperrors.ErrNotFound, KindNotFound, "Not found"},
	{apperrors.ErrInvalidTimeFormat, KindInvalidInput, "Start and end times must be in HH:MM format"},
	{apperrors.ErrSpeciesNotFound, KindInvalidInput, "Species not found"},
	{apperrors.ErrPasswordTooLong, KindInvalidInput, "Password must be at most 72 bytes"},
	{apperrors.ErrMalformedInput, KindInvalidInput, "Malformed input"},
}

// KindOf maps err onto its failure kind. Nil is KindOK.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func messageOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.message
		}
	}
	return "internal error"
}
