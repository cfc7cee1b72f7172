package models

import (
	"time"

	"kuruma/internal/compliance"
	id "kuruma/pkg/domain"
	dErrors "kuruma/pkg/domain-errors"
)

// Account is a marketplace participant whose sales are subject to the
// private-sale thresholds.
//
// Invariants:
//   - ID is never nil
//   - Type is one of guest, private, dealer
//   - CreatedAt is immutable after construction
type Account struct {
	ID        id.AccountID           `json:"id"`
	Type      compliance.AccountType `json:"account_type"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewAccount constructs an Account, enforcing its invariants.
func NewAccount(accountID id.AccountID, accountType compliance.AccountType, now time.Time) (*Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account ID cannot be nil")
	}
	if !accountType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid account type")
	}
	return &Account{
		ID:        accountID,
		Type:      accountType,
		CreatedAt: now,
	}, nil
}
