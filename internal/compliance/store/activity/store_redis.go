package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kuruma/internal/compliance/models"
	id "kuruma/pkg/domain"
	"kuruma/pkg/platform/sentinel"
)

const keyPrefix = "kuruma:activity:"

// Last sale is kept as unix milliseconds; the script only moves it forward.
var setLastSaleScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current or tonumber(current) < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

var decrementScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n <= 0 then
	return -1
end
return redis.call('DECR', KEYS[1])
`)

// Returns {opened, count}; count is unchanged when the limit is reached.
var incrementBelowScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
	return {0, n}
end
return {1, redis.call('INCR', KEYS[1])}
`)

// RedisStore keeps counters as plain Redis integers:
//
//	kuruma:activity:<account>:sales:<year>
//	kuruma:activity:<account>:listings
//	kuruma:activity:<account>:last_sale
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func salesKey(accountID id.AccountID, year int) string {
	return fmt.Sprintf("%s%s:sales:%d", keyPrefix, accountID, year)
}

func listingsKey(accountID id.AccountID) string {
	return keyPrefix + accountID.String() + ":listings"
}

func lastSaleKey(accountID id.AccountID) string {
	return keyPrefix + accountID.String() + ":last_sale"
}

func (s *RedisStore) Get(ctx context.Context, accountID id.AccountID, year int) (*models.Activity, error) {
	pipe := s.client.Pipeline()
	sold := pipe.Get(ctx, salesKey(accountID, year))
	listings := pipe.Get(ctx, listingsKey(accountID))
	lastSale := pipe.Get(ctx, lastSaleKey(accountID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load activity: %w", err)
	}

	activity := models.EmptyActivity(accountID, year)
	var err error
	if activity.VehiclesSold, err = intOrZero(sold); err != nil {
		return nil, err
	}
	if activity.ActiveListings, err = intOrZero(listings); err != nil {
		return nil, err
	}
	ms, err := lastSale.Int64()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("parse last sale: %w", err)
	default:
		t := time.UnixMilli(ms).UTC()
		activity.LastSaleDate = &t
	}
	return activity, nil
}

func (s *RedisStore) RecordSale(ctx context.Context, accountID id.AccountID, at time.Time) (*models.Activity, error) {
	if err := s.client.Incr(ctx, salesKey(accountID, at.Year())).Err(); err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}
	if err := setLastSaleScript.Run(ctx, s.client, []string{lastSaleKey(accountID)}, at.UnixMilli()).Err(); err != nil {
		return nil, fmt.Errorf("record last sale: %w", err)
	}
	return s.Get(ctx, accountID, at.Year())
}

func (s *RedisStore) IncrementListingsBelow(ctx context.Context, accountID id.AccountID, limit int) (int, bool, error) {
	res, err := incrementBelowScript.Run(ctx, s.client, []string{listingsKey(accountID)}, limit).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("increment listings: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("increment listings: unexpected script reply %v", res)
	}
	return int(res[1]), res[0] == 1, nil
}

func (s *RedisStore) DecrementListings(ctx context.Context, accountID id.AccountID) (int, error) {
	n, err := decrementScript.Run(ctx, s.client, []string{listingsKey(accountID)}).Int()
	if err != nil {
		return 0, fmt.Errorf("decrement listings: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("no active listings for %s: %w", accountID, sentinel.ErrInvalidState)
	}
	return n, nil
}

func intOrZero(cmd *redis.StringCmd) (int, error) {
	n, err := cmd.Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("parse counter: %w", err)
	}
	return n, nil
}
