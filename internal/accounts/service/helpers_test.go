package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/finlit/platform/internal/accounts/delivery"
	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/internal/accounts/store/drivers/sqlite"
	"github.com/finlit/platform/pkg/cryptox"
	"github.com/finlit/platform/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2021, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// outbox records delivered messages in place of a provider.
type outbox struct {
	mu   sync.Mutex
	msgs []delivery.Message
	fail error
}

func (o *outbox) Send(_ context.Context, msg delivery.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

func (o *outbox) SetFail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail = err
}

// LastCode returns the most recent code sent to `to`.
func (o *outbox) LastCode(t *testing.T, to string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].To == to {
			return o.msgs[i].Code
		}
	}
	t.Fatalf("no code sent to %s", to)
	return ""
}

type env struct {
	st    *sqlite.Store
	clock *clock
	out   *outbox

	otp       *service.OTPService
	sessions  *service.SessionService
	signup    *service.SignupService
	login     *service.LoginService
	directory *service.DirectoryService
	password  *service.PasswordService
	bootstrap *service.BootstrapService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clk := newClock()
	out := &outbox{}
	hasher := cryptox.PasswordHasher{Pepper: "test-pepper"}

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	otp := &service.OTPService{
		Challenges:  st.OTPChallenges(),
		Sender:      out,
		Key:         []byte("otp-key"),
		MaxAttempts: 3,
		Now:         clk.Now,
	}
	sessions := &service.SessionService{
		Signer:         signer,
		Verifier:       jwtx.NewVerifierHS256(testSecret, "finlit-test", 0).WithClock(clk.Now),
		Issuer:         "finlit-test",
		FingerprintKey: testSecret,
		Fingerprint:    service.FingerprintAdvisory,
		Now:            clk.Now,
	}

	return &env{
		st:        st,
		clock:     clk,
		out:       out,
		otp:       otp,
		sessions:  sessions,
		signup:    &service.SignupService{Store: st, OTP: otp, Hasher: hasher, Now: clk.Now},
		login:     &service.LoginService{Store: st, OTP: otp, Sessions: sessions, Hasher: hasher},
		directory: &service.DirectoryService{Store: st, Challenges: st.OTPChallenges(), Now: clk.Now},
		password:  &service.PasswordService{Store: st, OTP: otp, Hasher: hasher, Now: clk.Now},
		bootstrap: &service.BootstrapService{Store: st, Hasher: hasher, Now: clk.Now},
	}
}

const (
	testMobile   = "+61400000001"
	testPassword = "correct horse battery"
)

// signUp takes a new user through every signup step up to awaiting approval.
func (e *env) signUp(t *testing.T, email string) domain.Identity {
	t.Helper()
	ctx := context.Background()

	step, err := e.signup.Initiate(ctx, service.SignupInput{FullName: "Ada Lovelace", Email: email})
	require.NoError(t, err)
	require.Equal(t, domain.StepEmailOTP, step)

	_, step, err = e.signup.Advance(ctx, email, service.VerifyEmailInput{OTP: e.out.LastCode(t, email)})
	require.NoError(t, err)
	require.Equal(t, domain.StepMobilePassword, step)

	_, step, err = e.signup.Advance(ctx, email, service.MobilePasswordInput{Mobile: testMobile, Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, domain.StepVerifyMobileOTP, step)

	ident, step, err := e.signup.Advance(ctx, email, service.VerifyMobileInput{OTP: e.out.LastCode(t, testMobile)})
	require.NoError(t, err)
	require.Equal(t, domain.StepAwaitingApproval, step)
	return ident
}

// approvedUser signs up and approves a user.
func (e *env) approvedUser(t *testing.T, email string) domain.Identity {
	t.Helper()
	ident := e.signUp(t, email)
	ident, err := e.directory.Approve(context.Background(), ident.ID)
	require.NoError(t, err)
	return ident
}

func (e *env) seedAdmin(t *testing.T) {
	t.Helper()
	created, err := e.bootstrap.EnsureAdmin(context.Background(), service.AdminSeed{
		Username: "root",
		Email:    "Root@FinLit.io",
		Password: "admin-password-1",
	})
	require.NoError(t, err)
	require.True(t, created)
}
