package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS ad_accounts (
	subject      TEXT NOT NULL,
	account_id   TEXT NOT NULL,
	account_name TEXT NOT NULL DEFAULT '',
	access_token TEXT NOT NULL DEFAULT '',
	currency     TEXT NOT NULL DEFAULT 'USD',
	is_active    INTEGER NOT NULL DEFAULT 1,
	created_at   TIMESTAMP NOT NULL,
	last_synced  TIMESTAMP,
	PRIMARY KEY (subject, account_id)
);
CREATE INDEX IF NOT EXISTS idx_ad_accounts_subject ON ad_accounts(subject);
`

// SQLiteStore is a Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY errors under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ListAccounts(ctx context.Context, subject string) ([]AdAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, account_name, access_token, currency, is_active, created_at, last_synced
		FROM ad_accounts
		WHERE subject = ?
		ORDER BY is_active DESC, created_at ASC`, subject)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []AdAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

func (s *SQLiteStore) GetAccount(ctx context.Context, subject, accountID string) (*AdAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account_id, account_name, access_token, currency, is_active, created_at, last_synced
		FROM ad_accounts
		WHERE subject = ? AND account_id = ?`, subject, accountID)

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return acct, err
}

func (s *SQLiteStore) LinkAccount(ctx context.Context, subject string, account AdAccount) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	var lastSynced any
	if !account.LastSynced.IsZero() {
		lastSynced = account.LastSynced
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ad_accounts (subject, account_id, account_name, access_token, currency, is_active, created_at, last_synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject, account_id) DO UPDATE SET
			account_name = excluded.account_name,
			access_token = excluded.access_token,
			currency = excluded.currency,
			is_active = excluded.is_active`,
		subject, account.AccountID, account.AccountName, account.AccessToken,
		account.Currency, account.IsActive, account.CreatedAt, lastSynced)
	if err != nil {
		return fmt.Errorf("link account: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UnlinkAccount(ctx context.Context, subject, accountID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ad_accounts WHERE subject = ? AND account_id = ?`, subject, accountID)
	if err != nil {
		return fmt.Errorf("unlink account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) TouchSynced(ctx context.Context, subject, accountID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ad_accounts SET last_synced = ? WHERE subject = ? AND account_id = ?`,
		at, subject, accountID)
	if err != nil {
		return fmt.Errorf("touch account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*AdAccount, error) {
	var acct AdAccount
	var lastSynced sql.NullTime
	err := row.Scan(&acct.AccountID, &acct.AccountName, &acct.AccessToken,
		&acct.Currency, &acct.IsActive, &acct.CreatedAt, &lastSynced)
	if err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		acct.LastSynced = lastSynced.Time
	}
	return &acct, nil
}
