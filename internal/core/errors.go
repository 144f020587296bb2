package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMonthName   = errors.New("invalid month name")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidSlot        = errors.New("invalid slot index")
	ErrEmptySessionName   = errors.New("empty session name")
	ErrInsufficientData   = errors.New("insufficient data: no row with positive daily volume")
	ErrNoAvailableSlot    = errors.New("no available slot in target ledger")
	ErrDuplicateAborted   = errors.New("duplication aborted")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrRowNotInLedger     = errors.New("row is not a member of the ledger")
	ErrUnknownLedgerField = errors.New("unknown ledger field")
	ErrEmptySupplierName  = errors.New("empty supplier name")
)

// ValidationError is returned when an input is rejected. The rejected edit
// leaves prior state unchanged.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("validation failed for %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("validation failed for %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed store operation. The store guarantees the
// operation was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPersistence reports whether err carries a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsNotFound reports whether err is a session or document lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrDocumentNotFound)
}

func newValidationError(field, value string, err error) error {
	return &ValidationError{Field: field, Value: value, Err: err}
}
