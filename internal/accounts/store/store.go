package store

import (
	"context"
	"errors"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrCooldown is returned by ReplaceIfCooledDown when the existing
	// challenge's resend time has not yet passed.
	ErrCooldown = errors.New("store: resend cooldown active")
)

// Store is the root data access interface. Drivers expose sub-repositories
// so transaction scope is explicit: repositories taken from a Tx only ever
// see that Tx.
type Store interface {
	Identities() Identities
	OTPChallenges() OTPChallenges

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// IdentityFilter narrows List. Zero fields match everything.
type IdentityFilter struct {
	Role   domain.Role
	Status domain.ApprovalStatus
}

type Identities interface {
	// Create inserts a new identity. Returns ErrAlreadyExists when the email
	// or username is taken.
	Create(ctx context.Context, i domain.Identity) error

	GetByID(ctx context.Context, id string) (domain.Identity, error)

	// GetByEmail expects a normalised email.
	GetByEmail(ctx context.Context, email string) (domain.Identity, error)

	GetByUsername(ctx context.Context, username string) (domain.Identity, error)

	// List returns identities oldest first.
	List(ctx context.Context, f IdentityFilter) ([]domain.Identity, error)

	CountByRole(ctx context.Context, role domain.Role) (int, error)

	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	SetMobileAndPassword(ctx context.Context, id, mobile, passwordHash string, at time.Time) error
	MarkMobileVerified(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string, at time.Time) error
	SetApprovalStatus(ctx context.Context, id string, status domain.ApprovalStatus, at time.Time) error

	// Delete removes the identity and, where the driver supports it, its
	// challenges.
	Delete(ctx context.Context, id string) error
}

// OTPChallenges holds at most one challenge per domain.ChallengeKey.
// Mutations after issue are conditioned on the challenge id, so a replaced
// challenge is never touched by a caller still holding the old one.
type OTPChallenges interface {
	// Replace upserts c as the only challenge for its key.
	Replace(ctx context.Context, c domain.OTPChallenge) error

	// ReplaceIfCooledDown upserts c only when no challenge exists for the key
	// or the existing one's ResendAvailableAt is not after c.IssuedAt. The
	// check and write are atomic. On ErrCooldown the existing challenge is
	// returned.
	ReplaceIfCooledDown(ctx context.Context, c domain.OTPChallenge) (domain.OTPChallenge, error)

	// Get returns the challenge for key whether or not it is consumed or
	// expired.
	Get(ctx context.Context, key domain.ChallengeKey) (domain.OTPChallenge, error)

	// ReserveAttempt increments the attempt count of challenge id when it is
	// unconsumed and has attempts left. It reports whether an attempt was
	// reserved.
	ReserveAttempt(ctx context.Context, key domain.ChallengeKey, id string) (bool, error)

	// Consume marks challenge id consumed. Returns ErrNotFound when it was
	// already consumed or replaced.
	Consume(ctx context.Context, key domain.ChallengeKey, id string, at time.Time) error

	// Delete removes challenge id if it is still the current one for key.
	Delete(ctx context.Context, key domain.ChallengeKey, id string) error

	DeleteForIdentity(ctx context.Context, identityID string) error

	// DeleteExpired purges challenges that expired before the given time or
	// were consumed before it, returning how many were removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
