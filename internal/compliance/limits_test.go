package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdTable(t *testing.T) {
	guest, ok := ThresholdsFor(AccountTypeGuest)
	assert.True(t, ok)
	assert.Equal(t, Thresholds{MaxVehiclesPerYear: 2, MaxSimultaneousListings: 1}, guest)

	private, ok := ThresholdsFor(AccountTypePrivate)
	assert.True(t, ok)
	assert.Equal(t, Thresholds{MaxVehiclesPerYear: 1, MaxSimultaneousListings: 2}, private)

	dealer, ok := ThresholdsFor(AccountTypeDealer)
	assert.True(t, ok)
	assert.True(t, IsUnlimited(dealer.MaxVehiclesPerYear))
	assert.True(t, IsUnlimited(dealer.MaxSimultaneousListings))

	_, ok = ThresholdsFor("fleet")
	assert.False(t, ok)
}

func TestRemainingNeverNegative(t *testing.T) {
	for _, typ := range []AccountType{AccountTypeGuest, AccountTypePrivate} {
		for sold := 0; sold <= 10; sold++ {
			for listings := 0; listings <= 10; listings++ {
				s := mustEvaluate(t, Counters{AccountType: typ, VehiclesSoldThisYear: sold, ActiveListings: listings})
				assert.GreaterOrEqual(t, RemainingListings(s), 0)
				assert.GreaterOrEqual(t, RemainingAnnualSales(s), 0)
				assert.False(t, IsUnlimited(RemainingListings(s)))
			}
		}
	}
}

func TestRemainingValues(t *testing.T) {
	s := mustEvaluate(t, Counters{AccountType: AccountTypePrivate, ActiveListings: 1})
	assert.Equal(t, 1, RemainingListings(s))
	assert.Equal(t, 1, RemainingAnnualSales(s))

	s = mustEvaluate(t, Counters{AccountType: AccountTypeGuest, VehiclesSoldThisYear: 1})
	assert.Equal(t, 1, RemainingListings(s))
	assert.Equal(t, 1, RemainingAnnualSales(s))
}

func TestCanCreateNewListingPassesThrough(t *testing.T) {
	open := mustEvaluate(t, Counters{AccountType: AccountTypePrivate, ActiveListings: 1})
	closed := mustEvaluate(t, Counters{AccountType: AccountTypePrivate, ActiveListings: 2})
	assert.True(t, CanCreateNewListing(open))
	assert.False(t, CanCreateNewListing(closed))
}

func TestRemainingForUnknownTypeIsZero(t *testing.T) {
	assert.Equal(t, 0, RemainingListings(Status{AccountType: "fleet"}))
	assert.Equal(t, 0, RemainingAnnualSales(Status{AccountType: "fleet"}))
}
