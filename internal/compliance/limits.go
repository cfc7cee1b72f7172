package compliance

// RemainingListings returns how many more listings the account may hold,
// floored at zero. Dealers get Unlimited.
func RemainingListings(s Status) int {
	limits, ok := ThresholdsFor(s.AccountType)
	if !ok {
		return 0
	}
	return remaining(limits.MaxSimultaneousListings, s.ActiveListings)
}

// RemainingAnnualSales returns how many more vehicles the account may sell
// this year, floored at zero. Dealers get Unlimited.
func RemainingAnnualSales(s Status) int {
	limits, ok := ThresholdsFor(s.AccountType)
	if !ok {
		return 0
	}
	return remaining(limits.MaxVehiclesPerYear, s.VehiclesSoldThisYear)
}

// CanCreateNewListing reports the listing gate of an evaluated status.
func CanCreateNewListing(s Status) bool {
	return s.CanCreateNewListing
}

func remaining(limit, used int) int {
	if IsUnlimited(limit) {
		return Unlimited
	}
	return max(0, limit-used)
}
