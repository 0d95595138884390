package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/store"
)

const identityColumns = `id, role, full_name, username, email, mobile, password_hash,
	email_verified, mobile_verified, approval_status, created_at, updated_at`

type identitiesRepo struct {
	db dbtx
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (domain.Identity, error) {
	var (
		i                    domain.Identity
		role, status         string
		username, mobile     sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&i.ID, &role, &i.FullName, &username, &i.Email, &mobile, &i.PasswordHash,
		&i.EmailVerified, &i.MobileVerified, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Identity{}, err
	}
	i.Role = domain.Role(role)
	i.ApprovalStatus = domain.ApprovalStatus(status)
	i.Username = mapNullString(username)
	i.Mobile = mapNullString(mobile)
	i.CreatedAt = fromMillis(createdAt)
	i.UpdatedAt = fromMillis(updatedAt)
	return i, nil
}

func (r *identitiesRepo) Create(ctx context.Context, i domain.Identity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (`+identityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, string(i.Role), i.FullName, mapStringNull(i.Username), i.Email, mapStringNull(i.Mobile),
		i.PasswordHash, i.EmailVerified, i.MobileVerified, string(i.ApprovalStatus),
		toMillis(i.CreatedAt), toMillis(i.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *identitiesRepo) getOne(ctx context.Context, where string, arg any) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE `+where, arg)
	i, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return i, nil
}

func (r *identitiesRepo) GetByID(ctx context.Context, id string) (domain.Identity, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *identitiesRepo) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	return r.getOne(ctx, `email = ?`, email)
}

func (r *identitiesRepo) GetByUsername(ctx context.Context, username string) (domain.Identity, error) {
	return r.getOne(ctx, `username = ?`, username)
}

func (r *identitiesRepo) List(ctx context.Context, f store.IdentityFilter) ([]domain.Identity, error) {
	var (
		conds []string
		args  []any
	)
	if f.Role != "" {
		conds = append(conds, `role = ?`)
		args = append(args, string(f.Role))
	}
	if f.Status != "" {
		conds = append(conds, `approval_status = ?`)
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + identityColumns + ` FROM identities`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *identitiesRepo) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities WHERE role = ?`, string(role)).Scan(&n)
	return n, err
}

func (r *identitiesRepo) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE identities SET email_verified = 1, updated_at = ? WHERE id = ?`,
		toMillis(at), id))
}

func (r *identitiesRepo) SetMobileAndPassword(ctx context.Context, id, mobile, passwordHash string, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE identities SET mobile = ?, password_hash = ?, mobile_verified = 0, updated_at = ? WHERE id = ?`,
		mobile, passwordHash, toMillis(at), id))
}

func (r *identitiesRepo) MarkMobileVerified(ctx context.Context, id string, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE identities SET mobile_verified = 1, updated_at = ? WHERE id = ?`,
		toMillis(at), id))
}

func (r *identitiesRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, toMillis(at), id))
}

func (r *identitiesRepo) SetApprovalStatus(ctx context.Context, id string, status domain.ApprovalStatus, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE identities SET approval_status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(at), id))
}

// Delete cascades to otp_challenges (per schema).
func (r *identitiesRepo) Delete(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id))
}
