package activity

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"kuruma/internal/compliance/models"
	id "kuruma/pkg/domain"
	"kuruma/pkg/platform/sentinel"
)

type store interface {
	Get(ctx context.Context, accountID id.AccountID, year int) (*models.Activity, error)
	RecordSale(ctx context.Context, accountID id.AccountID, at time.Time) (*models.Activity, error)
	IncrementListingsBelow(ctx context.Context, accountID id.AccountID, limit int) (int, bool, error)
	DecrementListings(ctx context.Context, accountID id.AccountID) (int, error)
}

// contractSuite holds behavior every activity store must share. Backends
// embed it and set store and newAccount in their setup.
type contractSuite struct {
	suite.Suite
	store      store
	newAccount func() id.AccountID
}

func (s *contractSuite) TestEmptyActivity() {
	accountID := s.newAccount()
	a, err := s.store.Get(context.Background(), accountID, 2025)
	s.Require().NoError(err)
	s.Equal(accountID, a.AccountID)
	s.Equal(2025, a.Year)
	s.Zero(a.VehiclesSold)
	s.Zero(a.ActiveListings)
	s.Nil(a.LastSaleDate)
}

func (s *contractSuite) TestSalesAreBucketedByYear() {
	ctx := context.Background()
	accountID := s.newAccount()
	dec := time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)
	jan := time.Date(2025, time.January, 2, 9, 0, 0, 0, time.UTC)

	a, err := s.store.RecordSale(ctx, accountID, dec)
	s.Require().NoError(err)
	s.Equal(2024, a.Year)
	s.Equal(1, a.VehiclesSold)

	a, err = s.store.RecordSale(ctx, accountID, jan)
	s.Require().NoError(err)
	s.Equal(2025, a.Year)
	s.Equal(1, a.VehiclesSold)
	s.Require().NotNil(a.LastSaleDate)
	s.True(jan.Equal(*a.LastSaleDate))

	prev, err := s.store.Get(ctx, accountID, 2024)
	s.Require().NoError(err)
	s.Equal(1, prev.VehiclesSold)
}

func (s *contractSuite) TestLastSaleOnlyMovesForward() {
	ctx := context.Background()
	accountID := s.newAccount()
	later := time.Date(2025, time.May, 10, 12, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.store.RecordSale(ctx, accountID, later)
	s.Require().NoError(err)
	a, err := s.store.RecordSale(ctx, accountID, earlier)
	s.Require().NoError(err)

	s.Equal(2, a.VehiclesSold)
	s.Require().NotNil(a.LastSaleDate)
	s.True(later.Equal(*a.LastSaleDate))
}

func (s *contractSuite) TestListings() {
	ctx := context.Background()
	accountID := s.newAccount()

	_, err := s.store.DecrementListings(ctx, accountID)
	s.ErrorIs(err, sentinel.ErrInvalidState, "nothing to close yet")

	n, ok, err := s.store.IncrementListingsBelow(ctx, accountID, math.MaxInt)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(1, n)
	n, ok, err = s.store.IncrementListingsBelow(ctx, accountID, math.MaxInt)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(2, n)

	a, err := s.store.Get(ctx, accountID, 2030)
	s.Require().NoError(err)
	s.Equal(2, a.ActiveListings, "listings are not bucketed by year")

	n, err = s.store.DecrementListings(ctx, accountID)
	s.Require().NoError(err)
	s.Equal(1, n)
	n, err = s.store.DecrementListings(ctx, accountID)
	s.Require().NoError(err)
	s.Equal(0, n)

	_, err = s.store.DecrementListings(ctx, accountID)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *contractSuite) TestConcurrentIncrements() {
	ctx := context.Background()
	accountID := s.newAccount()
	const workers = 20

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.store.IncrementListingsBelow(ctx, accountID, math.MaxInt)
			_, _ = s.store.RecordSale(ctx, accountID, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
		}()
	}
	wg.Wait()

	a, err := s.store.Get(ctx, accountID, 2025)
	s.Require().NoError(err)
	s.Equal(workers, a.ActiveListings)
	s.Equal(workers, a.VehiclesSold)
}

func (s *contractSuite) TestIncrementStopsAtLimit() {
	ctx := context.Background()
	accountID := s.newAccount()

	n, ok, err := s.store.IncrementListingsBelow(ctx, accountID, 2)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(1, n)
	n, ok, err = s.store.IncrementListingsBelow(ctx, accountID, 2)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(2, n)

	n, ok, err = s.store.IncrementListingsBelow(ctx, accountID, 2)
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(2, n, "a refused increment reports the current count")

	_, err = s.store.DecrementListings(ctx, accountID)
	s.Require().NoError(err)
	n, ok, err = s.store.IncrementListingsBelow(ctx, accountID, 2)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(2, n)
}

func (s *contractSuite) TestConcurrentIncrementsRespectLimit() {
	ctx := context.Background()
	accountID := s.newAccount()
	const (
		workers = 20
		limit   = 3
	)

	var (
		wg     sync.WaitGroup
		opened atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.store.IncrementListingsBelow(ctx, accountID, limit)
			if err == nil && ok {
				opened.Add(1)
			}
		}()
	}
	wg.Wait()

	a, err := s.store.Get(ctx, accountID, 2025)
	s.Require().NoError(err)
	s.Equal(limit, a.ActiveListings)
	s.Equal(int32(limit), opened.Load())
}
