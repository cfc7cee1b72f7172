package models

import (
	"time"

	"kuruma/internal/compliance"
	id "kuruma/pkg/domain"
)

// Activity holds the counters the compliance engine consumes for one account.
// Sales are bucketed by calendar year; active listings are not.
type Activity struct {
	AccountID      id.AccountID `json:"account_id"`
	Year           int          `json:"year"`
	VehiclesSold   int          `json:"vehicles_sold"`
	ActiveListings int          `json:"active_listings"`
	LastSaleDate   *time.Time   `json:"last_sale_date,omitempty"`
}

// EmptyActivity is the activity of an account that never sold or listed.
func EmptyActivity(accountID id.AccountID, year int) *Activity {
	return &Activity{AccountID: accountID, Year: year}
}

// Counters adapts the activity to evaluator input.
func (a *Activity) Counters(accountType compliance.AccountType) compliance.Counters {
	return compliance.Counters{
		AccountType:          accountType,
		VehiclesSoldThisYear: a.VehiclesSold,
		ActiveListings:       a.ActiveListings,
		LastSaleDate:         a.LastSaleDate,
	}
}
