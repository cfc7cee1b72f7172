//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "kuruma/pkg/domain"
	"kuruma/pkg/platform/audit"
	auditMemory "kuruma/pkg/platform/audit/store/memory"
	auditPostgres "kuruma/pkg/platform/audit/store/postgres"
	"kuruma/pkg/platform/audit/worker"
	txcontext "kuruma/pkg/platform/tx"
	"kuruma/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditPostgres.Store
}

func TestOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = auditPostgres.New(s.postgres.DB)
}

func (s *OutboxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_outbox"))
}

func (s *OutboxSuite) event(action audit.AuditEvent) audit.Event {
	return audit.Event{
		Category:  action.Category(),
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		AccountID: id.NewAccountID(),
		Action:    string(action),
		RequestID: "req-1",
	}
}

func (s *OutboxSuite) TestAppendAndFetchPendingInOrder() {
	ctx := context.Background()
	first := s.event(audit.EventSaleRecorded)
	second := s.event(audit.EventLicenseRequired)
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))

	entries, err := s.store.FetchPending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(first.AccountID, entries[0].Event.AccountID)
	s.Equal(string(audit.EventSaleRecorded), entries[0].Event.Action)
	s.Equal(second.AccountID, entries[1].Event.AccountID)

	limited, err := s.store.FetchPending(ctx, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *OutboxSuite) TestMarkPublishedHidesEntries() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.event(audit.EventListingOpened)))
	s.Require().NoError(s.store.Append(ctx, s.event(audit.EventListingClosed)))

	entries, err := s.store.FetchPending(ctx, 10)
	s.Require().NoError(err)
	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{entries[0].ID}))

	pending, err := s.store.FetchPending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(entries[1].ID, pending[0].ID)
}

func (s *OutboxSuite) TestAppendJoinsCallerTransaction() {
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := txcontext.Run(ctx, s.postgres.DB, func(ctx context.Context, _ *sql.Tx) error {
		s.Require().NoError(s.store.Append(ctx, s.event(audit.EventSaleRecorded)))
		return errAbort
	})
	s.ErrorIs(err, errAbort)

	pending, err := s.store.FetchPending(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending, "rolled back with the caller's transaction")
}

func (s *OutboxSuite) TestWorkerRelaysToSink() {
	ctx := context.Background()
	for range 3 {
		s.Require().NoError(s.store.Append(ctx, s.event(audit.EventSaleRecorded)))
	}
	sink := auditMemory.NewInMemoryStore()
	relay := worker.NewWorker(s.store, sink, worker.WithBatchSize(2))

	n, err := relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
	n, err = relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	recent, err := sink.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Len(recent, 3)

	pending, err := s.store.FetchPending(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}
