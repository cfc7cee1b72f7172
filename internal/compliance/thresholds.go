package compliance

import "math"

// Unlimited marks a limit or remaining quota with no upper bound (dealers).
const Unlimited = math.MaxInt

const (
	// WarningThreshold is the count at or above which a warning is raised.
	WarningThreshold = 1
	// BusinessPatternThreshold is the annual sales count at or above which
	// the frequent-sales business pattern is flagged.
	BusinessPatternThreshold = 3
)

// Thresholds are the per-account-type private-sale limits.
type Thresholds struct {
	MaxVehiclesPerYear      int
	MaxSimultaneousListings int
}

var thresholdTable = map[AccountType]Thresholds{
	AccountTypeGuest:   {MaxVehiclesPerYear: 2, MaxSimultaneousListings: 1},
	AccountTypePrivate: {MaxVehiclesPerYear: 1, MaxSimultaneousListings: 2},
	AccountTypeDealer:  {MaxVehiclesPerYear: Unlimited, MaxSimultaneousListings: Unlimited},
}

// ThresholdsFor returns the limits for an account type.
func ThresholdsFor(t AccountType) (Thresholds, bool) {
	th, ok := thresholdTable[t]
	return th, ok
}

// IsUnlimited reports whether n is the Unlimited sentinel.
func IsUnlimited(n int) bool {
	return n == Unlimited
}
