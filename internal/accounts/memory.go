package accounts

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store, used in mock mode and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	links map[string][]AdAccount // subject -> accounts in insertion order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{links: make(map[string][]AdAccount)}
}

// NewDemoStore creates an in-memory store with a demo account linked to
// the given subject, so mock-mode servers answer tool calls out of the box.
func NewDemoStore(subject string) *MemoryStore {
	s := NewMemoryStore()
	s.links[subject] = []AdAccount{
		{
			AccountID:   "act_demo_12345",
			AccountName: "Demo Ad Account",
			AccessToken: "demo-access-token",
			Currency:    "USD",
			IsActive:    true,
			CreatedAt:   time.Now(),
		},
	}
	return s
}

func (s *MemoryStore) ListAccounts(_ context.Context, subject string) ([]AdAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := s.links[subject]
	out := make([]AdAccount, len(accounts))
	copy(out, accounts)
	return out, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, subject, accountID string) (*AdAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acct := range s.links[subject] {
		if acct.AccountID == accountID {
			copied := acct
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) LinkAccount(_ context.Context, subject string, account AdAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	accounts := s.links[subject]
	for i, existing := range accounts {
		if existing.AccountID == account.AccountID {
			accounts[i] = account
			return nil
		}
	}
	s.links[subject] = append(accounts, account)
	return nil
}

func (s *MemoryStore) UnlinkAccount(_ context.Context, subject, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.links[subject]
	for i, existing := range accounts {
		if existing.AccountID == accountID {
			s.links[subject] = append(accounts[:i], accounts[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) TouchSynced(_ context.Context, subject, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.links[subject]
	for i, existing := range accounts {
		if existing.AccountID == accountID {
			accounts[i].LastSynced = at
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Close() error { return nil }
