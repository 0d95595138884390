// Package storetest holds behaviour tests shared by every store driver.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/store"
	"github.com/finlit/platform/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Base is the fixed issue time used by the suite. Drivers store times with
// millisecond precision.
var Base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Challenge builds a fresh challenge for key issued at `at`.
func Challenge(key domain.ChallengeKey, at time.Time) domain.OTPChallenge {
	return domain.OTPChallenge{
		ID:                string(idx.NewAt(at)),
		IdentityID:        key.IdentityID,
		Channel:           key.Channel,
		Purpose:           key.Purpose,
		CodeHash:          "hash-" + at.Format(time.RFC3339Nano),
		IssuedAt:          at,
		ExpiresAt:         at.Add(10 * time.Minute),
		MaxAttempts:       3,
		ResendAvailableAt: at.Add(30 * time.Second),
	}
}

// Harness gives the suite a fresh repository and a way to make identities
// that challenges can reference.
type Harness struct {
	New         func(t *testing.T) store.OTPChallenges
	NewIdentity func(t *testing.T) string
}

// RunOTPChallenges exercises the OTPChallenges contract.
func RunOTPChallenges(t *testing.T, h Harness) {
	ctx := context.Background()

	setup := func(t *testing.T) (store.OTPChallenges, domain.ChallengeKey) {
		repo := h.New(t)
		return repo, domain.ChallengeKey{
			IdentityID: h.NewIdentity(t),
			Channel:    domain.ChannelEmail,
			Purpose:    domain.PurposeSignup,
		}
	}

	t.Run("get missing is not found", func(t *testing.T) {
		repo, key := setup(t)
		_, err := repo.Get(ctx, key)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("replace then get", func(t *testing.T) {
		repo, key := setup(t)
		c := Challenge(key, Base)
		require.NoError(t, repo.Replace(ctx, c))

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, c.ID, got.ID)
		require.Equal(t, c.CodeHash, got.CodeHash)
		require.Equal(t, 0, got.AttemptCount)
		require.Equal(t, 3, got.MaxAttempts)
		require.True(t, c.ExpiresAt.Equal(got.ExpiresAt))
		require.True(t, c.ResendAvailableAt.Equal(got.ResendAvailableAt))
		require.Nil(t, got.ConsumedAt)
	})

	t.Run("replace keeps one row per key", func(t *testing.T) {
		repo, key := setup(t)
		first := Challenge(key, Base)
		require.NoError(t, repo.Replace(ctx, first))
		ok, err := repo.ReserveAttempt(ctx, key, first.ID)
		require.NoError(t, err)
		require.True(t, ok)

		second := Challenge(key, Base.Add(time.Second))
		require.NoError(t, repo.Replace(ctx, second))

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, second.ID, got.ID)
		require.Equal(t, 0, got.AttemptCount, "attempts reset on replace")

		// The replaced challenge can no longer be touched.
		ok, err = repo.ReserveAttempt(ctx, key, first.ID)
		require.NoError(t, err)
		require.False(t, ok)
		require.ErrorIs(t, repo.Consume(ctx, key, first.ID, Base), store.ErrNotFound)
	})

	t.Run("keys are independent", func(t *testing.T) {
		repo, key := setup(t)
		other := key
		other.Channel = domain.ChannelMobile

		require.NoError(t, repo.Replace(ctx, Challenge(key, Base)))
		_, err := repo.Get(ctx, other)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("replace if cooled down", func(t *testing.T) {
		repo, key := setup(t)

		first := Challenge(key, Base)
		got, err := repo.ReplaceIfCooledDown(ctx, first)
		require.NoError(t, err, "no existing challenge")
		require.Equal(t, first.ID, got.ID)

		early := Challenge(key, Base.Add(10*time.Second))
		existing, err := repo.ReplaceIfCooledDown(ctx, early)
		require.ErrorIs(t, err, store.ErrCooldown)
		require.Equal(t, first.ID, existing.ID)
		require.True(t, first.ResendAvailableAt.Equal(existing.ResendAvailableAt))

		late := Challenge(key, first.ResendAvailableAt)
		_, err = repo.ReplaceIfCooledDown(ctx, late)
		require.NoError(t, err)

		cur, err := repo.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, late.ID, cur.ID)
	})

	t.Run("concurrent replace if cooled down has one winner", func(t *testing.T) {
		repo, key := setup(t)
		require.NoError(t, repo.Replace(ctx, Challenge(key, Base)))

		at := Base.Add(time.Minute)
		const n = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			wins      int
			cooldowns int
		)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c := Challenge(key, at)
				c.ID = string(idx.NewAt(at.Add(time.Duration(i) * time.Millisecond)))
				_, err := repo.ReplaceIfCooledDown(ctx, c)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, store.ErrCooldown):
					cooldowns++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, wins)
		require.Equal(t, n-1, cooldowns)
	})

	t.Run("reserve attempts up to max", func(t *testing.T) {
		repo, key := setup(t)
		c := Challenge(key, Base)
		require.NoError(t, repo.Replace(ctx, c))

		for range c.MaxAttempts {
			ok, err := repo.ReserveAttempt(ctx, key, c.ID)
			require.NoError(t, err)
			require.True(t, ok)
		}
		ok, err := repo.ReserveAttempt(ctx, key, c.ID)
		require.NoError(t, err)
		require.False(t, ok)

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, c.MaxAttempts, got.AttemptCount)
	})

	t.Run("consume once", func(t *testing.T) {
		repo, key := setup(t)
		c := Challenge(key, Base)
		require.NoError(t, repo.Replace(ctx, c))

		at := Base.Add(time.Minute)
		require.NoError(t, repo.Consume(ctx, key, c.ID, at))
		require.ErrorIs(t, repo.Consume(ctx, key, c.ID, at), store.ErrNotFound)

		got, err := repo.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got.ConsumedAt)
		require.True(t, at.Equal(*got.ConsumedAt))

		ok, err := repo.ReserveAttempt(ctx, key, c.ID)
		require.NoError(t, err)
		require.False(t, ok, "consumed challenges take no attempts")
	})

	t.Run("delete only matching id", func(t *testing.T) {
		repo, key := setup(t)
		c := Challenge(key, Base)
		require.NoError(t, repo.Replace(ctx, c))

		require.NoError(t, repo.Delete(ctx, key, "not-the-id"))
		_, err := repo.Get(ctx, key)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, key, c.ID))
		_, err = repo.Get(ctx, key)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete for identity", func(t *testing.T) {
		repo, key := setup(t)
		mobile := key
		mobile.Channel = domain.ChannelMobile
		require.NoError(t, repo.Replace(ctx, Challenge(key, Base)))
		require.NoError(t, repo.Replace(ctx, Challenge(mobile, Base)))

		require.NoError(t, repo.DeleteForIdentity(ctx, key.IdentityID))

		_, err := repo.Get(ctx, key)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = repo.Get(ctx, mobile)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
