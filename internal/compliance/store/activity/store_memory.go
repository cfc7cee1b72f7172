package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kuruma/internal/compliance/models"
	id "kuruma/pkg/domain"
	"kuruma/pkg/platform/sentinel"
)

type record struct {
	salesByYear map[int]int
	listings    int
	lastSale    *time.Time
}

// InMemory tracks activity counters in memory. All mutations happen under
// one lock, so counters are consistent per account.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.AccountID]*record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.AccountID]*record)}
}

func (s *InMemory) Get(_ context.Context, accountID id.AccountID, year int) (*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(accountID, year), nil
}

func (s *InMemory) RecordSale(_ context.Context, accountID id.AccountID, at time.Time) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recordFor(accountID)
	r.salesByYear[at.Year()]++
	if r.lastSale == nil || at.After(*r.lastSale) {
		t := at
		r.lastSale = &t
	}
	return s.snapshot(accountID, at.Year()), nil
}

// IncrementListingsBelow counts one more listing only while the account
// holds fewer than limit. The returned count is the current one either way.
func (s *InMemory) IncrementListingsBelow(_ context.Context, accountID id.AccountID, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recordFor(accountID)
	if r.listings >= limit {
		return r.listings, false, nil
	}
	r.listings++
	return r.listings, true, nil
}

func (s *InMemory) DecrementListings(_ context.Context, accountID id.AccountID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[accountID]
	if !ok || r.listings == 0 {
		return 0, fmt.Errorf("no active listings for %s: %w", accountID, sentinel.ErrInvalidState)
	}
	r.listings--
	return r.listings, nil
}

// recordFor must be called with the write lock held.
func (s *InMemory) recordFor(accountID id.AccountID) *record {
	r, ok := s.records[accountID]
	if !ok {
		r = &record{salesByYear: make(map[int]int)}
		s.records[accountID] = r
	}
	return r
}

// snapshot must be called with a lock held.
func (s *InMemory) snapshot(accountID id.AccountID, year int) *models.Activity {
	a := models.EmptyActivity(accountID, year)
	r, ok := s.records[accountID]
	if !ok {
		return a
	}
	a.VehiclesSold = r.salesByYear[year]
	a.ActiveListings = r.listings
	if r.lastSale != nil {
		t := *r.lastSale
		a.LastSaleDate = &t
	}
	return a
}
