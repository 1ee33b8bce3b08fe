package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidKey           = errors.New("invalid_key")
	ErrInvalidDescription   = errors.New("invalid_description")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
	ErrInvalidVersion       = errors.New("invalid_last_known_version")
	ErrEmptyUpdate          = errors.New("empty_update")
	ErrMissingActor         = errors.New("missing_actor")
	ErrNotFound             = errors.New("not_found")
	ErrDuplicateKey         = errors.New("duplicate_key")
	ErrConflict             = errors.New("conflict")
	ErrTransactionTimeout   = errors.New("transaction_timeout")
	ErrConcurrentWriteLimit = errors.New("concurrent_write_limit")
)

// ValidationError ties a rejected input to the field it came from.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// ConflictError reports a stale lastKnownVersion. It matches ErrConflict with errors.Is.
type ConflictError struct {
	CurrentVersion    int64
	ProvidedVersion   int64
	LastModifiedBy    string
	LastModifiedAt    time.Time
	ConflictingFields []string
}

func (e *ConflictError) Error() string { return ErrConflict.Error() }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
