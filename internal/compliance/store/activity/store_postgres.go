package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kuruma/internal/compliance/models"
	id "kuruma/pkg/domain"
	"kuruma/pkg/platform/sentinel"
	txcontext "kuruma/pkg/platform/tx"
)

// PostgresStore keeps yearly sales in account_sales and the live listing
// count in account_listings. Counter updates are single-statement upserts.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) queryer(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, accountID id.AccountID, year int) (*models.Activity, error) {
	query := `
		SELECT
			COALESCE((SELECT vehicles_sold FROM account_sales WHERE account_id = $1 AND year = $2), 0),
			COALESCE((SELECT active_listings FROM account_listings WHERE account_id = $1), 0),
			(SELECT max(last_sale_at) FROM account_sales WHERE account_id = $1)
	`
	activity := models.EmptyActivity(accountID, year)
	var lastSale sql.NullTime
	err := s.queryer(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID), year).
		Scan(&activity.VehiclesSold, &activity.ActiveListings, &lastSale)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	if lastSale.Valid {
		t := lastSale.Time
		activity.LastSaleDate = &t
	}
	return activity, nil
}

// RecordSale upserts the yearly counter and re-reads the activity in the
// same transaction.
func (s *PostgresStore) RecordSale(ctx context.Context, accountID id.AccountID, at time.Time) (*models.Activity, error) {
	var activity *models.Activity
	err := txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		query := `
			INSERT INTO account_sales (account_id, year, vehicles_sold, last_sale_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (account_id, year) DO UPDATE
			SET vehicles_sold = account_sales.vehicles_sold + 1,
				last_sale_at = GREATEST(account_sales.last_sale_at, EXCLUDED.last_sale_at)
		`
		if _, err := tx.ExecContext(ctx, query, uuid.UUID(accountID), at.Year(), at); err != nil {
			return fmt.Errorf("record sale: %w", err)
		}
		var err error
		activity, err = s.Get(ctx, accountID, at.Year())
		return err
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// IncrementListingsBelow counts one more listing only while the account
// holds fewer than limit. ON CONFLICT DO UPDATE holds the row lock while the
// WHERE clause is checked. limit must be >= 1.
func (s *PostgresStore) IncrementListingsBelow(ctx context.Context, accountID id.AccountID, limit int) (int, bool, error) {
	query := `
		INSERT INTO account_listings (account_id, active_listings)
		VALUES ($1, 1)
		ON CONFLICT (account_id) DO UPDATE
		SET active_listings = account_listings.active_listings + 1
		WHERE account_listings.active_listings < $2::bigint
		RETURNING active_listings
	`
	q := s.queryer(ctx)
	var n int
	err := q.QueryRowContext(ctx, query, uuid.UUID(accountID), int64(limit)).Scan(&n)
	if err == nil {
		return n, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("increment listings: %w", err)
	}

	err = q.QueryRowContext(ctx,
		`SELECT active_listings FROM account_listings WHERE account_id = $1`,
		uuid.UUID(accountID)).Scan(&n)
	if err != nil {
		return 0, false, fmt.Errorf("load listings: %w", err)
	}
	return n, false, nil
}

func (s *PostgresStore) DecrementListings(ctx context.Context, accountID id.AccountID) (int, error) {
	query := `
		UPDATE account_listings
		SET active_listings = active_listings - 1
		WHERE account_id = $1 AND active_listings > 0
		RETURNING active_listings
	`
	var n int
	err := s.queryer(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID)).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("no active listings for %s: %w", accountID, sentinel.ErrInvalidState)
		}
		return 0, fmt.Errorf("decrement listings: %w", err)
	}
	return n, nil
}
