// Package compliance classifies a marketplace account against Japanese
// private-vehicle-sales thresholds.
//
// Everything here is pure domain logic: no I/O, no shared state. Callers
// supply already-materialized counters and the evaluation time.
package compliance

import (
	"strings"
	"time"

	dErrors "kuruma/pkg/domain-errors"
)

// AccountType classifies a marketplace participant.
type AccountType string

const (
	AccountTypeGuest   AccountType = "guest"
	AccountTypePrivate AccountType = "private"
	AccountTypeDealer  AccountType = "dealer"
)

// ParseAccountType validates external input.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account_type must be one of guest, private, dealer")
	}
	return t, nil
}

// IsValid checks if the account type is one of the supported enum values.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeGuest, AccountTypePrivate, AccountTypeDealer:
		return true
	}
	return false
}

func (t AccountType) String() string {
	return string(t)
}

// WarningLevel is how close an account is to the private-sale limits.
type WarningLevel string

const (
	WarningLevelNone     WarningLevel = "none"
	WarningLevelWarning  WarningLevel = "warning"
	WarningLevelCritical WarningLevel = "critical"
)

// Severity orders warning levels; higher is worse.
func (l WarningLevel) Severity() int {
	switch l {
	case WarningLevelWarning:
		return 1
	case WarningLevelCritical:
		return 2
	default:
		return 0
	}
}

// BusinessPatterns are heuristics suggesting unlicensed commercial selling.
type BusinessPatterns struct {
	FrequentSales                bool `json:"frequent_sales"`
	CommercialAdvertising        bool `json:"commercial_advertising"`
	MultipleSimultaneousListings bool `json:"multiple_simultaneous_listings"`
}

// Counters are the raw inputs to an evaluation, supplied by whatever tracks
// sales and listings.
type Counters struct {
	AccountType          AccountType
	VehiclesSoldThisYear int
	ActiveListings       int
	LastSaleDate         *time.Time
}

// Status is the computed snapshot of an account's standing. It is rebuilt on
// every evaluation and never mutated afterwards. It deliberately carries no
// evaluation timestamp so same-day evaluations are identical.
type Status struct {
	AccountType          AccountType      `json:"account_type"`
	VehiclesSoldThisYear int              `json:"vehicles_sold_this_year"`
	ActiveListings       int              `json:"active_listings"`
	WarningLevel         WarningLevel     `json:"warning_level"`
	RequiresLicense      bool             `json:"requires_license"`
	DaysUntilYearReset   int              `json:"days_until_year_reset"`
	LastSaleDate         *time.Time       `json:"last_sale_date,omitempty"`
	BusinessPatterns     BusinessPatterns `json:"business_patterns"`
	CanCreateNewListing  bool             `json:"can_create_new_listing"`
}
