//go:build integration

package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kuruma/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
	now   time.Time
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.now = time.Now().Truncate(time.Millisecond)
	s.store = NewRedisStore(s.redis.Client)
	s.store.now = func() time.Time { return s.now }
}

func (s *RedisStoreSuite) TestAllowsUpToLimit() {
	ctx := context.Background()
	for i := range 3 {
		res, err := s.store.Allow(ctx, "kuruma:ratelimit:test", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.store.Allow(ctx, "kuruma:ratelimit:test", 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(s.now.Add(time.Minute), res.ResetAt)
	s.Equal(60, res.RetryAfter)
}

func (s *RedisStoreSuite) TestWindowSlides() {
	ctx := context.Background()
	key := "kuruma:ratelimit:slide"
	_, _ = s.store.Allow(ctx, key, 1, time.Minute)

	s.now = s.now.Add(61 * time.Second)
	res, err := s.store.Allow(ctx, key, 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *RedisStoreSuite) TestKeyExpires() {
	ctx := context.Background()
	key := "kuruma:ratelimit:ttl"
	_, err := s.store.Allow(ctx, key, 5, time.Minute)
	s.Require().NoError(err)

	ttl, err := s.redis.Client.PTTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}
