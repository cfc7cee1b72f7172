package compliance

import (
	"math"
	"time"

	dErrors "kuruma/pkg/domain-errors"
)

// Evaluate classifies counters at time now.
// This is pure domain logic - the only input besides the counters is now,
// which feeds DaysUntilYearReset alone.
//
// Rule order:
//  1. Business patterns are computed for every account type
//  2. Dealers are exempt from every threshold
//  3. Guests and private sellers get a warning from the first sale or listing
//  4. Reaching a limit or a business pattern escalates to critical
//  5. The listing gate closes once active listings reach the maximum
func Evaluate(in Counters, now time.Time) (Status, error) {
	if err := validate(in); err != nil {
		return Status{}, err
	}
	limits, _ := ThresholdsFor(in.AccountType)

	status := Status{
		AccountType:          in.AccountType,
		VehiclesSoldThisYear: in.VehiclesSoldThisYear,
		ActiveListings:       in.ActiveListings,
		WarningLevel:         WarningLevelNone,
		DaysUntilYearReset:   DaysUntilYearReset(now),
		LastSaleDate:         copyTime(in.LastSaleDate),
		BusinessPatterns: BusinessPatterns{
			FrequentSales:                in.VehiclesSoldThisYear >= BusinessPatternThreshold,
			MultipleSimultaneousListings: in.ActiveListings > limits.MaxSimultaneousListings,
			// Not evaluated yet: needs listing content analysis.
			CommercialAdvertising: false,
		},
		CanCreateNewListing: true,
	}

	// Rule 2: dealers are licensed, unlimited by definition.
	if in.AccountType == AccountTypeDealer {
		return status, nil
	}

	// Rule 3: first sale or first listing.
	if in.VehiclesSoldThisYear >= WarningThreshold || in.ActiveListings >= WarningThreshold {
		status.WarningLevel = WarningLevelWarning
	}

	// Rule 4: hard limits and commercial patterns.
	if in.VehiclesSoldThisYear >= limits.MaxVehiclesPerYear ||
		in.ActiveListings > limits.MaxSimultaneousListings ||
		status.BusinessPatterns.FrequentSales ||
		status.BusinessPatterns.MultipleSimultaneousListings {
		status.WarningLevel = WarningLevelCritical
		status.RequiresLicense = true
		status.CanCreateNewListing = false
	}

	// Rule 5: the gate uses >= while the business pattern above uses >.
	// Both comparisons are intentional and tested separately.
	if in.ActiveListings >= limits.MaxSimultaneousListings {
		status.CanCreateNewListing = false
	}

	return status, nil
}

// DaysUntilYearReset returns ceil((Dec 31 00:00 of now's year - now) / 24h),
// computed in now's location. It is 0 on Dec 31.
func DaysUntilYearReset(now time.Time) int {
	yearEnd := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, now.Location())
	days := int(math.Ceil(yearEnd.Sub(now).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

func validate(in Counters) error {
	if !in.AccountType.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "account_type must be one of guest, private, dealer")
	}
	if in.VehiclesSoldThisYear < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "vehicles_sold_this_year must not be negative")
	}
	if in.ActiveListings < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "active_listings must not be negative")
	}
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
