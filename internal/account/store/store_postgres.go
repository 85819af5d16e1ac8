package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"electa/internal/account/models"
	"electa/internal/platform/postgres"
	id "electa/pkg/domain"
	"electa/pkg/platform/sentinel"
)

// PostgresStore persists accounts in the accounts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `
	id, name, email, wallet_address, role, has_voted, election_ongoing,
	code_hash, code_expires_at, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a         models.Account
		accountID uuid.UUID
		wallet    string
		role      string
		codeHash  sql.NullString
		codeExp   sql.NullTime
	)
	err := row.Scan(
		&accountID, &a.Name, &a.Email, &wallet, &role, &a.HasVoted, &a.ElectionOngoing,
		&codeHash, &codeExp, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.ID = id.AccountID(accountID)
	a.WalletAddress = id.Address(wallet)
	a.Role = models.Role(role)
	if codeHash.Valid && codeExp.Valid {
		a.SetLoginCode(codeHash.String, codeExp.Time)
	}
	return &a, nil
}

func nullableCode(a *models.Account) (sql.NullString, sql.NullTime) {
	if a.CodeHash == nil || a.CodeExpiresAt == nil {
		return sql.NullString{}, sql.NullTime{}
	}
	return sql.NullString{String: *a.CodeHash, Valid: true},
		sql.NullTime{Time: a.CodeExpiresAt.UTC(), Valid: true}
}

func translateWriteError(err error, op string) error {
	if constraint, ok := postgres.IsUniqueViolation(err); ok {
		return fmt.Errorf("%s: %s: %w", op, constraint, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PostgresStore) Create(ctx context.Context, a *models.Account) error {
	hash, exp := nullableCode(a)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(a.ID), a.Name, a.Email, a.WalletAddress.String(), a.Role.String(),
		a.HasVoted, a.ElectionOngoing, hash, exp, a.CreatedAt.UTC(), a.UpdatedAt.UTC(), a.Version,
	)
	if err != nil {
		return translateWriteError(err, "create account")
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, uuid.UUID(accountID))
	return scanAccount(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// ListAll returns accounts oldest first, optionally restricted to roles.
func (s *PostgresStore) ListAll(ctx context.Context, roles ...models.Role) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = r.String()
		}
		query += ` WHERE role = ANY($1::text[])`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, accountID id.AccountID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, uuid.UUID(accountID))
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

// Execute locks the row, runs validate and mutate on a copy, and writes
// every mutable column back in one UPDATE.
func (s *PostgresStore) Execute(
	ctx context.Context,
	accountID id.AccountID,
	validate func(*models.Account) error,
	mutate func(*models.Account),
) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin account tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, uuid.UUID(accountID))
	account, err := scanAccount(row)
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(account); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(account)
	}
	if err := account.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), sentinel.ErrInvalidState)
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = time.Now()
	}

	hash, exp := nullableCode(account)
	err = tx.QueryRowContext(ctx, `
		UPDATE accounts SET
			name = $2, wallet_address = $3, role = $4, has_voted = $5, election_ongoing = $6,
			code_hash = $7, code_expires_at = $8, updated_at = $9, version = version + 1
		WHERE id = $1
		RETURNING version`,
		uuid.UUID(account.ID), account.Name, account.WalletAddress.String(), account.Role.String(),
		account.HasVoted, account.ElectionOngoing, hash, exp, account.UpdatedAt.UTC(),
	).Scan(&account.Version)
	if err != nil {
		return nil, translateWriteError(err, "update account")
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit account tx: %w", err)
	}
	return account, nil
}
