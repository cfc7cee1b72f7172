package bucket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type InMemoryBucketStoreSuite struct {
	suite.Suite
	store *InMemoryBucketStore
	now   time.Time
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.now = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	s.store = NewInMemoryBucketStore()
	s.store.now = func() time.Time { return s.now }
}

func (s *InMemoryBucketStoreSuite) TestAllowsUpToLimit() {
	ctx := context.Background()
	for i := range 3 {
		res, err := s.store.Allow(ctx, "k", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
		s.Equal(s.now.Add(time.Minute), res.ResetAt)
	}

	res, err := s.store.Allow(ctx, "k", 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
	s.Equal(60, res.RetryAfter)
}

func (s *InMemoryBucketStoreSuite) TestWindowSlides() {
	ctx := context.Background()
	_, _ = s.store.Allow(ctx, "k", 2, time.Minute)
	s.now = s.now.Add(30 * time.Second)
	_, _ = s.store.Allow(ctx, "k", 2, time.Minute)

	res, _ := s.store.Allow(ctx, "k", 2, time.Minute)
	s.False(res.Allowed)
	s.Equal(30, res.RetryAfter)

	s.now = s.now.Add(31 * time.Second)
	res, _ = s.store.Allow(ctx, "k", 2, time.Minute)
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)
}

func (s *InMemoryBucketStoreSuite) TestKeysAreIndependent() {
	ctx := context.Background()
	res, _ := s.store.Allow(ctx, "a", 1, time.Minute)
	s.True(res.Allowed)
	res, _ = s.store.Allow(ctx, "b", 1, time.Minute)
	s.True(res.Allowed)
	res, _ = s.store.Allow(ctx, "a", 1, time.Minute)
	s.False(res.Allowed)
}

func (s *InMemoryBucketStoreSuite) TestIdleBucketsAreSwept() {
	ctx := context.Background()
	for i := range 100 {
		_, err := s.store.Allow(ctx, fmt.Sprintf("client-%d", i), 5, time.Minute)
		s.Require().NoError(err)
	}
	s.Len(s.store.buckets, 100)

	s.now = s.now.Add(30 * time.Second)
	_, _ = s.store.Allow(ctx, "client-0", 5, time.Minute)
	s.Len(s.store.buckets, 100, "windows still open")

	s.now = s.now.Add(2 * time.Minute)
	_, _ = s.store.Allow(ctx, "late", 5, time.Minute)
	s.Len(s.store.buckets, 1, "only the bucket just used remains")
	s.Contains(s.store.buckets, "late")
}

func TestInMemoryBucketStore_Concurrent(t *testing.T) {
	store := NewInMemoryBucketStore()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Allow(ctx, "shared", 10, time.Minute)
			require.NoError(t, err)
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}
