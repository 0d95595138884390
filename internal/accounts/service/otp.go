package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finlit/platform/internal/accounts/delivery"
	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/store"
	"github.com/finlit/platform/pkg/cryptox"
	"github.com/finlit/platform/pkg/idx"
	"github.com/finlit/platform/pkg/slogx"
)

const (
	CodeDigits = 6

	DefaultOTPTTL         = 10 * time.Minute
	DefaultResendCooldown = 30 * time.Second
	DefaultMaxAttempts    = 5
)

// Sender delivers a code out of band.
type Sender interface {
	Send(ctx context.Context, msg delivery.Message) error
}

// OTPService issues and checks one-time codes. There is at most one live
// challenge per identity, channel and purpose; issuing replaces it.
type OTPService struct {
	Challenges store.OTPChallenges
	Sender     Sender
	Key        []byte // HMAC key for code digests

	TTL         time.Duration
	Cooldown    time.Duration
	MaxAttempts int

	Now func() time.Time
}

func (s *OTPService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *OTPService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultOTPTTL
}

func (s *OTPService) cooldown() time.Duration {
	if s.Cooldown > 0 {
		return s.Cooldown
	}
	return DefaultResendCooldown
}

func (s *OTPService) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (s *OTPService) digest(challengeID, code string) string {
	return cryptox.KeyedDigest(s.Key, challengeID, code)
}

// Issue sends a fresh code, unconditionally replacing any live challenge for
// the same identity, channel and purpose.
func (s *OTPService) Issue(ctx context.Context, ident domain.Identity, ch domain.Channel, purpose domain.Purpose) (domain.ChallengeHandle, error) {
	return s.issue(ctx, ident, ch, purpose, false)
}

// Resend is Issue guarded by the resend cooldown. Within the cooldown it
// returns a *CooldownError and leaves the live challenge untouched.
func (s *OTPService) Resend(ctx context.Context, ident domain.Identity, ch domain.Channel, purpose domain.Purpose) (domain.ChallengeHandle, error) {
	return s.issue(ctx, ident, ch, purpose, true)
}

func (s *OTPService) issue(ctx context.Context, ident domain.Identity, ch domain.Channel, purpose domain.Purpose, guarded bool) (domain.ChallengeHandle, error) {
	l := slogx.FromContext(ctx)

	to, err := address(ident, ch)
	if err != nil {
		return domain.ChallengeHandle{}, err
	}

	code, err := cryptox.NumericCode(CodeDigits)
	if err != nil {
		return domain.ChallengeHandle{}, err
	}

	now := s.now()
	id := idx.NewAt(now).String()
	c := domain.OTPChallenge{
		ID:                id,
		IdentityID:        ident.ID,
		Channel:           ch,
		Purpose:           purpose,
		CodeHash:          s.digest(id, code),
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.ttl()),
		MaxAttempts:       s.maxAttempts(),
		ResendAvailableAt: now.Add(s.cooldown()),
	}

	if guarded {
		existing, err := s.Challenges.ReplaceIfCooledDown(ctx, c)
		if errors.Is(err, store.ErrCooldown) {
			return domain.ChallengeHandle{}, &CooldownError{RetryAfter: existing.ResendAvailableAt.Sub(now)}
		}
		if err != nil {
			return domain.ChallengeHandle{}, fmt.Errorf("store challenge: %w", err)
		}
	} else if err := s.Challenges.Replace(ctx, c); err != nil {
		return domain.ChallengeHandle{}, fmt.Errorf("store challenge: %w", err)
	}

	err = s.Sender.Send(ctx, delivery.Message{
		Channel: ch,
		To:      to,
		Purpose: purpose,
		Code:    code,
		TTL:     s.ttl(),
	})
	if err != nil {
		l.Warn("otp delivery failed",
			"identity_id", ident.ID,
			"channel", ch,
			"purpose", purpose,
			"error", err,
		)
		// Drop the undelivered challenge so the client can retry at once.
		if derr := s.Challenges.Delete(ctx, c.Key(), c.ID); derr != nil {
			l.Error("failed to drop undelivered challenge", "challenge_id", c.ID, "error", derr)
		}
		return domain.ChallengeHandle{}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	l.Info("otp issued", "identity_id", ident.ID, "channel", ch, "purpose", purpose, "challenge_id", c.ID)
	return c.Handle(), nil
}

// Verify checks code against the live challenge. Failures are, in order of
// precedence, ErrOTPNotFound, ErrOTPExpired, ErrOTPExhausted and
// ErrOTPMismatch. A wrong code uses up an attempt; an expired one does not.
// A successful verify consumes the challenge, so replays get ErrOTPNotFound.
func (s *OTPService) Verify(ctx context.Context, identityID string, ch domain.Channel, purpose domain.Purpose, code string) error {
	key := domain.ChallengeKey{IdentityID: identityID, Channel: ch, Purpose: purpose}
	now := s.now()

	c, err := s.Challenges.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOTPNotFound
		}
		return fmt.Errorf("load challenge: %w", err)
	}
	if err := classify(c, now); err != nil {
		return err
	}

	// The attempt is counted before the code is compared so parallel guesses
	// cannot exceed the limit.
	ok, err := s.Challenges.ReserveAttempt(ctx, key, c.ID)
	if err != nil {
		return fmt.Errorf("reserve attempt: %w", err)
	}
	if !ok {
		current, err := s.Challenges.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOTPNotFound
			}
			return fmt.Errorf("load challenge: %w", err)
		}
		if current.ID != c.ID {
			return ErrOTPNotFound
		}
		if err := classify(current, now); err != nil {
			return err
		}
		return ErrOTPExhausted
	}

	if !cryptox.EqualDigest(c.CodeHash, s.digest(c.ID, code)) {
		return ErrOTPMismatch
	}

	if err := s.Challenges.Consume(ctx, key, c.ID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOTPNotFound
		}
		return fmt.Errorf("consume challenge: %w", err)
	}
	return nil
}

func classify(c domain.OTPChallenge, now time.Time) error {
	switch {
	case c.Consumed():
		return ErrOTPNotFound
	case c.Expired(now):
		return ErrOTPExpired
	case c.Exhausted():
		return ErrOTPExhausted
	}
	return nil
}

func address(ident domain.Identity, ch domain.Channel) (string, error) {
	switch ch {
	case domain.ChannelEmail:
		if ident.Email != "" {
			return ident.Email, nil
		}
	case domain.ChannelMobile:
		if ident.Mobile != "" {
			return ident.Mobile, nil
		}
	}
	return "", fmt.Errorf("identity %s has no %s address", ident.ID, ch)
}
