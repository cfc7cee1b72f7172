package handler

import (
	"time"

	"kuruma/internal/compliance"
	dErrors "kuruma/pkg/domain-errors"
)

// EvaluateRequest carries raw counters for a stateless evaluation.
type EvaluateRequest struct {
	AccountType          string     `json:"account_type"`
	VehiclesSoldThisYear *int       `json:"vehicles_sold_this_year"`
	ActiveListings       *int       `json:"active_listings"`
	LastSaleDate         *time.Time `json:"last_sale_date,omitempty"`

	accountType compliance.AccountType
}

func (r *EvaluateRequest) Validate() error {
	if r.AccountType == "" {
		return dErrors.New(dErrors.CodeValidation, "account_type is required")
	}
	t, err := compliance.ParseAccountType(r.AccountType)
	if err != nil {
		return err
	}
	r.accountType = t

	if r.VehiclesSoldThisYear == nil {
		return dErrors.New(dErrors.CodeValidation, "vehicles_sold_this_year is required")
	}
	if r.ActiveListings == nil {
		return dErrors.New(dErrors.CodeValidation, "active_listings is required")
	}
	if *r.VehiclesSoldThisYear < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "vehicles_sold_this_year must not be negative")
	}
	if *r.ActiveListings < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "active_listings must not be negative")
	}
	return nil
}

// Counters converts a validated request.
func (r *EvaluateRequest) Counters() compliance.Counters {
	return compliance.Counters{
		AccountType:          r.accountType,
		VehiclesSoldThisYear: *r.VehiclesSoldThisYear,
		ActiveListings:       *r.ActiveListings,
		LastSaleDate:         r.LastSaleDate,
	}
}

// RecordSaleRequest optionally back-dates a sale. An empty body means now.
type RecordSaleRequest struct {
	SoldAt *time.Time `json:"sold_at,omitempty"`
}

func (r *RecordSaleRequest) Validate() error {
	if r.SoldAt != nil && r.SoldAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "sold_at must be a valid timestamp")
	}
	return nil
}

func (r *RecordSaleRequest) soldAt() time.Time {
	if r.SoldAt == nil {
		return time.Time{}
	}
	return *r.SoldAt
}

type RegisterAccountRequest struct {
	AccountType string `json:"account_type"`

	accountType compliance.AccountType
}

func (r *RegisterAccountRequest) Validate() error {
	if r.AccountType == "" {
		return dErrors.New(dErrors.CodeValidation, "account_type is required")
	}
	t, err := compliance.ParseAccountType(r.AccountType)
	if err != nil {
		return err
	}
	r.accountType = t
	return nil
}
