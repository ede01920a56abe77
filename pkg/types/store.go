package types

import (
	"context"
	"errors"
	"fmt"
)

// Store provides the primitive operations against the remote watchlist table.
// Implementations own every wire concern of their backend and report failures
// as *StoreError.
type Store interface {
	// Scan returns every record in the table in no particular order.
	// A failure is ErrStoreUnavailable; it never means "empty table".
	Scan(ctx context.Context) ([]Record, error)

	// Get returns a single record. Returns ErrItemMissing if the table has no
	// item with that id.
	Get(ctx context.Context, id string) (Record, error)

	// Create persists a new record and returns it as stored.
	Create(ctx context.Context, rec Record) (Record, error)

	// Update persists only the fields present in changes and returns the full
	// post-update attribute set. An empty change set returns (nil, nil)
	// without contacting the backend.
	Update(ctx context.Context, id string, changes Changes) (Attributes, error)

	// Delete removes the record. A missing item is an ErrStoreWrite that also
	// matches ErrItemMissing.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}

// Error kinds. Every error returned by the mirror matches one of these with
// errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrStoreWrite       = errors.New("store rejected write")
	ErrNotFound         = errors.New("record not found")
)

// Validation refinements.
var (
	ErrEmptyTitle       = fmt.Errorf("%w: title must not be empty", ErrValidation)
	ErrDuplicateID      = fmt.Errorf("%w: record id already exists", ErrValidation)
	ErrUnknownField     = fmt.Errorf("%w: unknown field", ErrValidation)
	ErrInvalidValue     = fmt.Errorf("%w: invalid field value", ErrValidation)
	ErrInvalidSortOrder = fmt.Errorf("%w: invalid sort order", ErrValidation)
	ErrInvalidID        = fmt.Errorf("%w: id must not be empty", ErrValidation)
)

// ErrItemMissing reports that the remote table has no item with the given id.
var ErrItemMissing = errors.New("item does not exist in table")

// Store operation names used in StoreError.Op.
const (
	OpScan   = "scan"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// StoreError is the error every Store returns. Kind is ErrStoreUnavailable,
// ErrStoreWrite or ErrItemMissing; Err carries the backend cause.
type StoreError struct {
	Op   string
	ID   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	msg := e.Op
	if e.ID != "" {
		msg += " " + e.ID
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Unavailable builds a StoreError of kind ErrStoreUnavailable.
func Unavailable(op, id string, err error) error {
	return &StoreError{Op: op, ID: id, Kind: ErrStoreUnavailable, Err: err}
}

// WriteRejected builds a StoreError of kind ErrStoreWrite.
func WriteRejected(op, id string, err error) error {
	return &StoreError{Op: op, ID: id, Kind: ErrStoreWrite, Err: err}
}

// IsValidation reports whether err is a local precondition failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
