// Package redis stores OTP challenges in Redis. It implements
// store.OTPChallenges only; identities always live in the SQL store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/store"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix    = "otp"
	DefaultRetention = 24 * time.Hour

	maxWatchRetries = 10
)

// ErrContention is returned when optimistic transactions keep conflicting.
var ErrContention = errors.New("redis: too much contention on challenge key")

const (
	fieldID         = "id"
	fieldCodeHash   = "code_hash"
	fieldIssuedAt   = "issued_at"
	fieldExpiresAt  = "expires_at"
	fieldAttempts   = "attempts"
	fieldMax        = "max_attempts"
	fieldResendAt   = "resend_at"
	fieldConsumedAt = "consumed_at"
)

// Challenges keeps one hash per challenge key. Keys outlive the challenge's
// expiry by Retention so an expired code is still reported as expired, and
// Redis TTLs take the place of housekeeping.
type Challenges struct {
	Client    redis.UniversalClient
	Prefix    string
	Retention time.Duration
}

func NewChallenges(client redis.UniversalClient) *Challenges {
	return &Challenges{
		Client:    client,
		Prefix:    DefaultPrefix,
		Retention: DefaultRetention,
	}
}

// Ping verifies the Redis connection.
func (s *Challenges) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *Challenges) key(k domain.ChallengeKey) string {
	return fmt.Sprintf("%s:%s:%s:%s", s.Prefix, k.IdentityID, k.Channel, k.Purpose)
}

func (s *Challenges) ttl(c domain.OTPChallenge) time.Duration {
	end := c.ExpiresAt
	if c.ResendAvailableAt.After(end) {
		end = c.ResendAvailableAt
	}
	return end.Sub(c.IssuedAt) + s.Retention
}

func (s *Challenges) write(ctx context.Context, pipe redis.Pipeliner, c domain.OTPChallenge) {
	key := s.key(c.Key())
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldID:        c.ID,
		fieldCodeHash:  c.CodeHash,
		fieldIssuedAt:  c.IssuedAt.UnixMilli(),
		fieldExpiresAt: c.ExpiresAt.UnixMilli(),
		fieldAttempts:  0,
		fieldMax:       c.MaxAttempts,
		fieldResendAt:  c.ResendAvailableAt.UnixMilli(),
	})
	pipe.PExpire(ctx, key, s.ttl(c))
}

// watch runs fn under WATCH on key, retrying when another client changed the
// key before EXEC.
func (s *Challenges) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for range maxWatchRetries {
		err := s.Client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func (s *Challenges) Replace(ctx context.Context, c domain.OTPChallenge) error {
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.write(ctx, pipe, c)
		return nil
	})
	return err
}

func (s *Challenges) ReplaceIfCooledDown(ctx context.Context, c domain.OTPChallenge) (domain.OTPChallenge, error) {
	key := s.key(c.Key())
	var existing domain.OTPChallenge

	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		cur, found, err := s.load(ctx, tx, c.Key())
		if err != nil {
			return err
		}
		if found && cur.ResendAvailableAt.After(c.IssuedAt) {
			existing = cur
			return store.ErrCooldown
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, c)
			return nil
		})
		return err
	})
	if errors.Is(err, store.ErrCooldown) {
		return existing, store.ErrCooldown
	}
	if err != nil {
		return domain.OTPChallenge{}, err
	}
	return c, nil
}

func (s *Challenges) Get(ctx context.Context, key domain.ChallengeKey) (domain.OTPChallenge, error) {
	c, found, err := s.load(ctx, s.Client, key)
	if err != nil {
		return domain.OTPChallenge{}, err
	}
	if !found {
		return domain.OTPChallenge{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Challenges) ReserveAttempt(ctx context.Context, key domain.ChallengeKey, id string) (bool, error) {
	reserved := false
	err := s.watch(ctx, s.key(key), func(tx *redis.Tx) error {
		cur, found, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if !found || cur.ID != id || cur.Consumed() || cur.Exhausted() {
			reserved = false
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, s.key(key), fieldAttempts, 1)
			return nil
		})
		reserved = err == nil
		return err
	})
	return reserved, err
}

func (s *Challenges) Consume(ctx context.Context, key domain.ChallengeKey, id string, at time.Time) error {
	return s.watch(ctx, s.key(key), func(tx *redis.Tx) error {
		cur, found, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if !found || cur.ID != id || cur.Consumed() {
			return store.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key(key), fieldConsumedAt, at.UnixMilli())
			return nil
		})
		return err
	})
}

func (s *Challenges) Delete(ctx context.Context, key domain.ChallengeKey, id string) error {
	return s.watch(ctx, s.key(key), func(tx *redis.Tx) error {
		cur, found, err := s.load(ctx, tx, key)
		if err != nil || !found || cur.ID != id {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.key(key))
			return nil
		})
		return err
	})
}

func (s *Challenges) DeleteForIdentity(ctx context.Context, identityID string) error {
	var keys []string
	for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelMobile} {
		for _, p := range []domain.Purpose{domain.PurposeSignup, domain.PurposeLogin, domain.PurposePasswordReset} {
			keys = append(keys, s.key(domain.ChallengeKey{IdentityID: identityID, Channel: ch, Purpose: p}))
		}
	}
	return s.Client.Del(ctx, keys...).Err()
}

// DeleteExpired is a no-op: challenge keys carry their own TTL.
func (s *Challenges) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *Challenges) load(ctx context.Context, r hashReader, key domain.ChallengeKey) (domain.OTPChallenge, bool, error) {
	fields, err := r.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return domain.OTPChallenge{}, false, err
	}
	if len(fields) == 0 {
		return domain.OTPChallenge{}, false, nil
	}

	c := domain.OTPChallenge{
		ID:         fields[fieldID],
		IdentityID: key.IdentityID,
		Channel:    key.Channel,
		Purpose:    key.Purpose,
		CodeHash:   fields[fieldCodeHash],
	}

	ints := make(map[string]int64, 6)
	for _, f := range []string{fieldIssuedAt, fieldExpiresAt, fieldAttempts, fieldMax, fieldResendAt} {
		v, err := strconv.ParseInt(fields[f], 10, 64)
		if err != nil {
			return domain.OTPChallenge{}, false, fmt.Errorf("redis: challenge field %s: %w", f, err)
		}
		ints[f] = v
	}
	c.IssuedAt = time.UnixMilli(ints[fieldIssuedAt]).UTC()
	c.ExpiresAt = time.UnixMilli(ints[fieldExpiresAt]).UTC()
	c.ResendAvailableAt = time.UnixMilli(ints[fieldResendAt]).UTC()
	c.AttemptCount = int(ints[fieldAttempts])
	c.MaxAttempts = int(ints[fieldMax])

	if raw, ok := fields[fieldConsumedAt]; ok && raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.OTPChallenge{}, false, fmt.Errorf("redis: challenge field %s: %w", fieldConsumedAt, err)
		}
		t := time.UnixMilli(ms).UTC()
		c.ConsumedAt = &t
	}
	return c, true, nil
}

var _ store.OTPChallenges = (*Challenges)(nil)
