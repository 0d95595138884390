package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/store"
)

type otpChallengesRepo struct {
	db dbtx
}

const upsertChallenge = `
	INSERT INTO otp_challenges (
		id, identity_id, channel, purpose, code_hash, issued_at, expires_at,
		attempt_count, max_attempts, resend_available_at, consumed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, NULL)
	ON CONFLICT (identity_id, channel, purpose) DO UPDATE SET
		id                  = excluded.id,
		code_hash           = excluded.code_hash,
		issued_at           = excluded.issued_at,
		expires_at          = excluded.expires_at,
		attempt_count       = 0,
		max_attempts        = excluded.max_attempts,
		resend_available_at = excluded.resend_available_at,
		consumed_at         = NULL`

func challengeArgs(c domain.OTPChallenge) []any {
	return []any{
		c.ID, c.IdentityID, string(c.Channel), string(c.Purpose), c.CodeHash,
		toMillis(c.IssuedAt), toMillis(c.ExpiresAt), c.MaxAttempts, toMillis(c.ResendAvailableAt),
	}
}

func (r *otpChallengesRepo) Replace(ctx context.Context, c domain.OTPChallenge) error {
	_, err := r.db.ExecContext(ctx, upsertChallenge, challengeArgs(c)...)
	return err
}

func (r *otpChallengesRepo) ReplaceIfCooledDown(ctx context.Context, c domain.OTPChallenge) (domain.OTPChallenge, error) {
	args := append(challengeArgs(c), toMillis(c.IssuedAt))
	res, err := r.db.ExecContext(ctx, upsertChallenge+`
	WHERE otp_challenges.resend_available_at <= ?`, args...)
	if err != nil {
		return domain.OTPChallenge{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.OTPChallenge{}, err
	}
	if n == 0 {
		existing, err := r.Get(ctx, c.Key())
		if err != nil {
			return domain.OTPChallenge{}, err
		}
		return existing, store.ErrCooldown
	}
	return c, nil
}

func (r *otpChallengesRepo) Get(ctx context.Context, key domain.ChallengeKey) (domain.OTPChallenge, error) {
	var (
		c                                      domain.OTPChallenge
		channel, purpose                       string
		issuedAt, expiresAt, resendAvailableAt int64
		consumedAt                             sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, identity_id, channel, purpose, code_hash, issued_at, expires_at,
		       attempt_count, max_attempts, resend_available_at, consumed_at
		FROM otp_challenges
		WHERE identity_id = ? AND channel = ? AND purpose = ?`,
		key.IdentityID, string(key.Channel), string(key.Purpose),
	).Scan(
		&c.ID, &c.IdentityID, &channel, &purpose, &c.CodeHash, &issuedAt, &expiresAt,
		&c.AttemptCount, &c.MaxAttempts, &resendAvailableAt, &consumedAt,
	)
	if err != nil {
		return domain.OTPChallenge{}, mapNotFound(err)
	}

	c.Channel = domain.Channel(channel)
	c.Purpose = domain.Purpose(purpose)
	c.IssuedAt = fromMillis(issuedAt)
	c.ExpiresAt = fromMillis(expiresAt)
	c.ResendAvailableAt = fromMillis(resendAvailableAt)
	c.ConsumedAt = mapNullMillisPtr(consumedAt)
	return c, nil
}

func (r *otpChallengesRepo) ReserveAttempt(ctx context.Context, _ domain.ChallengeKey, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE otp_challenges SET attempt_count = attempt_count + 1
		WHERE id = ? AND consumed_at IS NULL AND attempt_count < max_attempts`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *otpChallengesRepo) Consume(ctx context.Context, _ domain.ChallengeKey, id string, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		toMillis(at), id))
}

func (r *otpChallengesRepo) Delete(ctx context.Context, _ domain.ChallengeKey, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE id = ?`, id)
	return err
}

func (r *otpChallengesRepo) DeleteForIdentity(ctx context.Context, identityID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE identity_id = ?`, identityID)
	return err
}

func (r *otpChallengesRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ms := toMillis(before)
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM otp_challenges
		WHERE expires_at < ? OR (consumed_at IS NOT NULL AND consumed_at < ?)`, ms, ms)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
