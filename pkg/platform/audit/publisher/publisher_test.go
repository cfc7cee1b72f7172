package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kuruma/pkg/domain"
	audit "kuruma/pkg/platform/audit"
	"kuruma/pkg/platform/audit/store/memory"
	"kuruma/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func TestPublisher_Emit(t *testing.T) {
	store := memory.NewInMemoryStore()
	fixed := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	pub := New(store)
	pub.now = func() time.Time { return fixed }

	accountID := id.NewAccountID()
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")

	err := pub.Emit(ctx, audit.Event{
		AccountID: accountID,
		Action:    string(audit.EventLicenseRequired),
	})
	require.NoError(t, err)

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "req-1", events[0].RequestID)
}

func TestPublisher_KeepsExplicitFields(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	accountID := id.NewAccountID()
	at := time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		AccountID: accountID,
		Action:    string(audit.EventSaleRecorded),
		Timestamp: at,
		RequestID: "explicit",
		Category:  audit.CategoryCompliance,
	}))

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, at, events[0].Timestamp)
	assert.Equal(t, "explicit", events[0].RequestID)
	assert.Equal(t, audit.CategoryOperations, events[0].Category, "category is derived from action")
}

func TestPublisher_RejectsIncompleteEvents(t *testing.T) {
	pub := New(memory.NewInMemoryStore())

	err := pub.Emit(context.Background(), audit.Event{Action: "sale_recorded"})
	assert.ErrorContains(t, err, "AccountID")

	err = pub.Emit(context.Background(), audit.Event{AccountID: id.NewAccountID()})
	assert.ErrorContains(t, err, "Action")
}

func TestPublisher_ReturnsStoreError(t *testing.T) {
	m := NewMetricsWithRegisterer(prometheus.NewRegistry())
	pub := New(failingStore{}, WithMetrics(m))

	err := pub.Emit(context.Background(), audit.Event{
		AccountID: id.NewAccountID(),
		Action:    string(audit.EventListingBlocked),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistFailures))
}
