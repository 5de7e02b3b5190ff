package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreTests exercises the Store contract against any implementation.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("EmptySubject", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		accounts, err := s.ListAccounts(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, accounts)

		_, err = s.GetAccount(ctx, "nobody", "act_1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("LinkAndList", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		require.NoError(t, s.LinkAccount(ctx, "user-1", AdAccount{
			AccountID:   "act_1",
			AccountName: "First",
			AccessToken: "tok-1",
			Currency:    "USD",
			IsActive:    true,
			CreatedAt:   time.Now().Add(-time.Hour),
		}))
		require.NoError(t, s.LinkAccount(ctx, "user-1", AdAccount{
			AccountID:   "act_2",
			AccountName: "Second",
			AccessToken: "tok-2",
			Currency:    "EUR",
			IsActive:    true,
			CreatedAt:   time.Now(),
		}))

		accounts, err := s.ListAccounts(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, "act_1", accounts[0].AccountID)
		assert.Equal(t, "act_2", accounts[1].AccountID)

		// Other subjects do not see these links.
		other, err := s.ListAccounts(ctx, "user-2")
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("GetAccount", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		require.NoError(t, s.LinkAccount(ctx, "user-1", AdAccount{
			AccountID:   "act_1",
			AccountName: "First",
			AccessToken: "tok-1",
			Currency:    "PKR",
			IsActive:    true,
		}))

		acct, err := s.GetAccount(ctx, "user-1", "act_1")
		require.NoError(t, err)
		assert.Equal(t, "First", acct.AccountName)
		assert.Equal(t, "PKR", acct.Currency)
		assert.True(t, acct.IsActive)
	})

	t.Run("RelinkReplaces", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		require.NoError(t, s.LinkAccount(ctx, "user-1", AdAccount{
			AccountID: "act_1", AccessToken: "old", IsActive: true,
		}))
		require.NoError(t, s.LinkAccount(ctx, "user-1", AdAccount{
			AccountID: "act_1", AccessToken: "new", IsActive: false,
		}))

		acct, err := s.GetAccount(ctx, "user-1", "act_1")
		require.NoError(t, err)
		assert.Equal(t, "new", acct.AccessToken)
		assert.False(t, acct.IsActive)

		accounts, err := s.ListAccounts(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, accounts, 1)
	})

	t.Run("Unlink", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		require.NoError(t, s.LinkAccount(ctx, "user-1", AdAccount{AccountID: "act_1"}))
		require.NoError(t, s.UnlinkAccount(ctx, "user-1", "act_1"))

		_, err := s.GetAccount(ctx, "user-1", "act_1")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.UnlinkAccount(ctx, "user-1", "act_1"), ErrNotFound)
	})

	t.Run("TouchSynced", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		require.NoError(t, s.LinkAccount(ctx, "user-1", AdAccount{AccountID: "act_1"}))

		at := time.Now().Truncate(time.Second)
		require.NoError(t, s.TouchSynced(ctx, "user-1", "act_1", at))

		acct, err := s.GetAccount(ctx, "user-1", "act_1")
		require.NoError(t, err)
		assert.WithinDuration(t, at, acct.LastSynced, time.Second)

		assert.ErrorIs(t, s.TouchSynced(ctx, "user-1", "act_x", at), ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		s, err := OpenSQLite(":memory:")
		require.NoError(t, err)
		return s
	})
}

func TestDemoStore(t *testing.T) {
	s := NewDemoStore("claude")

	accounts, err := s.ListAccounts(context.Background(), "claude")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "act_demo_12345", accounts[0].AccountID)
	assert.Equal(t, "USD", accounts[0].Currency)
	assert.True(t, accounts[0].IsActive)
}
