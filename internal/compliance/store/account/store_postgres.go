package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kuruma/internal/compliance"
	"kuruma/internal/compliance/models"
	id "kuruma/pkg/domain"
	"kuruma/pkg/platform/sentinel"
	txcontext "kuruma/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore persists accounts in the accounts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create joins the transaction in ctx, if any.
func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, account_type, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(account.ID), string(account.Type), account.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("account %s: %w", account.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	query := `SELECT id, account_type, created_at FROM accounts WHERE id = $1`

	var (
		rawID       uuid.UUID
		accountType string
		account     models.Account
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(accountID)).Scan(&rawID, &accountType, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	account.ID = id.AccountID(rawID)
	account.Type = compliance.AccountType(accountType)
	return &account, nil
}
