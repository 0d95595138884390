package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/finlit/platform/internal/accounts/delivery"
	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/internal/accounts/store"
	otpredis "github.com/finlit/platform/internal/accounts/store/drivers/redis"
	"github.com/finlit/platform/pkg/idx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newOTPEnv(t *testing.T) (*env, domain.Identity) {
	t.Helper()
	e := newEnv(t)
	ident := domain.Identity{
		ID:             idx.New().String(),
		Role:           domain.RoleUser,
		FullName:       "Grace Hopper",
		Email:          "grace@example.com",
		Mobile:         "+61400000002",
		ApprovalStatus: domain.ApprovalPending,
		CreatedAt:      e.clock.Now(),
		UpdatedAt:      e.clock.Now(),
	}
	require.NoError(t, e.st.Identities().Create(context.Background(), ident))
	return e, ident
}

func TestOTPIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	e, ident := newOTPEnv(t)

	h, err := e.otp.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeSignup)
	require.NoError(t, err)
	require.NotEmpty(t, h.ChallengeID)
	require.Equal(t, e.clock.Now().Add(service.DefaultOTPTTL), h.ExpiresAt)
	require.Equal(t, e.clock.Now().Add(service.DefaultResendCooldown), h.ResendAvailableAt)

	code := e.out.LastCode(t, ident.Email)
	require.Len(t, code, service.CodeDigits)

	stored, err := e.st.OTPChallenges().Get(ctx, domain.ChallengeKey{IdentityID: ident.ID, Channel: domain.ChannelEmail, Purpose: domain.PurposeSignup})
	require.NoError(t, err)
	require.NotContains(t, stored.CodeHash, code)

	require.NoError(t, e.otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeSignup, code))

	t.Run("replay is not found", func(t *testing.T) {
		err := e.otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeSignup, code)
		require.ErrorIs(t, err, service.ErrOTPNotFound)
	})

	t.Run("purposes do not cross", func(t *testing.T) {
		err := e.otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeLogin, code)
		require.ErrorIs(t, err, service.ErrOTPNotFound)
	})
}

func TestOTPVerifyMissing(t *testing.T) {
	e, ident := newOTPEnv(t)
	err := e.otp.Verify(context.Background(), ident.ID, domain.ChannelMobile, domain.PurposeSignup, "123456")
	require.ErrorIs(t, err, service.ErrOTPNotFound)
}

func TestOTPExhaustion(t *testing.T) {
	ctx := context.Background()
	e, ident := newOTPEnv(t)

	_, err := e.otp.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeLogin)
	require.NoError(t, err)
	code := e.out.LastCode(t, ident.Email)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for range 3 {
		err := e.otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeLogin, wrong)
		require.ErrorIs(t, err, service.ErrOTPMismatch)
	}

	err = e.otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeLogin, code)
	require.ErrorIs(t, err, service.ErrOTPExhausted, "the right code must not pass once attempts are used up")

	// A fresh issue starts over.
	_, err = e.otp.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeLogin)
	require.NoError(t, err)
	require.NoError(t, e.otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeLogin, e.out.LastCode(t, ident.Email)))
}

func TestOTPExpiryDoesNotCountAttempt(t *testing.T) {
	ctx := context.Background()
	e, ident := newOTPEnv(t)
	key := domain.ChallengeKey{IdentityID: ident.ID, Channel: domain.ChannelEmail, Purpose: domain.PurposeSignup}

	_, err := e.otp.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeSignup)
	require.NoError(t, err)
	code := e.out.LastCode(t, ident.Email)

	e.clock.Advance(service.DefaultOTPTTL)

	err = e.otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeSignup, code)
	require.ErrorIs(t, err, service.ErrOTPExpired)

	c, err := e.st.OTPChallenges().Get(ctx, key)
	require.NoError(t, err)
	require.Zero(t, c.AttemptCount)
}

func TestOTPNewIssueInvalidatesOld(t *testing.T) {
	ctx := context.Background()
	e, ident := newOTPEnv(t)

	_, err := e.otp.Issue(ctx, ident, domain.ChannelMobile, domain.PurposeSignup)
	require.NoError(t, err)
	old := e.out.LastCode(t, ident.Mobile)

	_, err = e.otp.Issue(ctx, ident, domain.ChannelMobile, domain.PurposeSignup)
	require.NoError(t, err)
	fresh := e.out.LastCode(t, ident.Mobile)

	if old != fresh {
		err = e.otp.Verify(ctx, ident.ID, domain.ChannelMobile, domain.PurposeSignup, old)
		require.ErrorIs(t, err, service.ErrOTPMismatch)
	}
	require.NoError(t, e.otp.Verify(ctx, ident.ID, domain.ChannelMobile, domain.PurposeSignup, fresh))
}

func TestOTPResendCooldown(t *testing.T) {
	ctx := context.Background()
	e, ident := newOTPEnv(t)

	_, err := e.otp.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeSignup)
	require.NoError(t, err)
	first := e.out.LastCode(t, ident.Email)

	e.clock.Advance(10 * time.Second)
	_, err = e.otp.Resend(ctx, ident, domain.ChannelEmail, domain.PurposeSignup)
	require.ErrorIs(t, err, service.ErrCooldown)

	var cd *service.CooldownError
	require.True(t, errors.As(err, &cd))
	require.Equal(t, 20*time.Second, cd.RetryAfter)
	require.Equal(t, 1, e.out.Len(), "a refused resend must not send")

	e.clock.Advance(20 * time.Second)
	_, err = e.otp.Resend(ctx, ident, domain.ChannelEmail, domain.PurposeSignup)
	require.NoError(t, err)
	second := e.out.LastCode(t, ident.Email)
	require.Equal(t, 2, e.out.Len())

	if first != second {
		require.ErrorIs(t, e.otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeSignup, first), service.ErrOTPMismatch)
	}
	require.NoError(t, e.otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeSignup, second))
}

func TestOTPConcurrentResend(t *testing.T) {
	ctx := context.Background()
	e, ident := newOTPEnv(t)

	_, err := e.otp.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeSignup)
	require.NoError(t, err)
	e.clock.Advance(time.Minute)

	const n = 2
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.otp.Resend(ctx, ident, domain.ChannelEmail, domain.PurposeSignup)
		}()
	}
	wg.Wait()

	var ok, cooldown int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, service.ErrCooldown):
			cooldown++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, cooldown)
	require.Equal(t, 2, e.out.Len(), "one issue plus one resend")
}

func TestOTPDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	e, ident := newOTPEnv(t)
	key := domain.ChallengeKey{IdentityID: ident.ID, Channel: domain.ChannelEmail, Purpose: domain.PurposeSignup}

	e.out.SetFail(delivery.ErrDeliveryFailed)
	_, err := e.otp.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeSignup)
	require.ErrorIs(t, err, service.ErrDeliveryFailed)

	_, err = e.st.OTPChallenges().Get(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound, "undelivered challenge must be dropped")

	// No cooldown was left behind.
	e.out.SetFail(nil)
	_, err = e.otp.Resend(ctx, ident, domain.ChannelEmail, domain.PurposeSignup)
	require.NoError(t, err)
}

func TestOTPNoAddress(t *testing.T) {
	e, ident := newOTPEnv(t)
	ident.Mobile = ""
	_, err := e.otp.Issue(context.Background(), ident, domain.ChannelMobile, domain.PurposeSignup)
	require.Error(t, err)
	require.Zero(t, e.out.Len())
}

func TestOTPOverRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := newClock()
	out := &outbox{}
	otp := &service.OTPService{
		Challenges: otpredis.NewChallenges(client),
		Sender:     out,
		Key:        []byte("otp-key"),
		Now:        clk.Now,
	}
	ident := domain.Identity{ID: idx.New().String(), Email: "r@example.com"}

	_, err := otp.Issue(ctx, ident, domain.ChannelEmail, domain.PurposeLogin)
	require.NoError(t, err)
	code := out.LastCode(t, ident.Email)

	_, err = otp.Resend(ctx, ident, domain.ChannelEmail, domain.PurposeLogin)
	require.ErrorIs(t, err, service.ErrCooldown)

	require.NoError(t, otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeLogin, code))
	require.ErrorIs(t, otp.Verify(ctx, ident.ID, domain.ChannelEmail, domain.PurposeLogin, code), service.ErrOTPNotFound)
}
