package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "kuruma/pkg/domain-errors"
)

// AccountID identifies a marketplace account (guest, private seller or dealer).
// Invariant: a parsed AccountID is never the nil UUID.
type AccountID uuid.UUID

// NewAccountID returns a fresh random account identifier.
func NewAccountID() AccountID {
	return AccountID(uuid.New())
}

// ParseAccountID validates external input at trust boundaries.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "account ID cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid account ID format")
	}
	if parsed == uuid.Nil {
		return AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "account ID cannot be nil")
	}
	return AccountID(parsed), nil
}

func (id AccountID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the ID is the zero value.
func (id AccountID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText lets AccountID round-trip through JSON as a plain string.
func (id AccountID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *AccountID) UnmarshalText(b []byte) error {
	parsed, err := ParseAccountID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
