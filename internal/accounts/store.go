// Package accounts stores the link between an authenticated subject and
// the Meta ad accounts they have connected. The web dashboard that
// creates these links is a separate system; the MCP core only reads and
// occasionally touches them.
package accounts

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var (
	ErrNotFound = errors.New("ad account not found")
)

// AdAccount is a linked Meta ad account with its access credential.
type AdAccount struct {
	AccountID   string
	AccountName string
	AccessToken string
	Currency    string
	IsActive    bool
	CreatedAt   time.Time
	LastSynced  time.Time
}

// Store provides access to ad-account links, keyed by subject.
type Store interface {
	// ListAccounts returns all accounts linked to the subject, active
	// first, in creation order. An unknown subject yields an empty slice.
	ListAccounts(ctx context.Context, subject string) ([]AdAccount, error)

	// GetAccount returns a single linked account by id, or ErrNotFound.
	GetAccount(ctx context.Context, subject, accountID string) (*AdAccount, error)

	// LinkAccount adds or replaces an account link for the subject.
	LinkAccount(ctx context.Context, subject string, account AdAccount) error

	// UnlinkAccount removes an account link. Removing an unknown
	// account returns ErrNotFound.
	UnlinkAccount(ctx context.Context, subject, accountID string) error

	// TouchSynced records a successful data fetch for the account.
	TouchSynced(ctx context.Context, subject, accountID string, at time.Time) error

	// Close releases any underlying resources.
	Close() error
}
