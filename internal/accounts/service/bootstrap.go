package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/store"
	"github.com/finlit/platform/pkg/cryptox"
	"github.com/finlit/platform/pkg/idx"
	"github.com/finlit/platform/pkg/slogx"
)

var ErrBootstrapIncomplete = errors.New("admin seed needs username, email and password")

// AdminSeed describes the admin created on first start.
type AdminSeed struct {
	Username string
	Email    string
	FullName string
	Password string
}

func (a AdminSeed) IsZero() bool {
	return a.Username == "" && a.Email == "" && a.Password == ""
}

type BootstrapService struct {
	Store  store.Store
	Hasher cryptox.PasswordHasher

	Now func() time.Time
}

// EnsureAdmin creates the seed admin when no admin exists yet. It reports
// whether an admin was created. A zero seed is skipped.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	if seed.IsZero() {
		return false, nil
	}
	if seed.Username == "" || seed.Email == "" || seed.Password == "" {
		return false, ErrBootstrapIncomplete
	}
	l := slogx.FromContext(ctx)

	hash, err := s.Hasher.Hash(seed.Password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	name := seed.FullName
	if name == "" {
		name = seed.Username
	}
	admin := domain.Identity{
		ID:             idx.NewAt(now).String(),
		Role:           domain.RoleAdmin,
		FullName:       name,
		Username:       seed.Username,
		Email:          domain.NormalizeEmail(seed.Email),
		PasswordHash:   hash,
		EmailVerified:  true,
		ApprovalStatus: domain.ApprovalApproved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created := false
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.Identities().CountByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Identities().Create(ctx, admin); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}

	if created {
		l.Info("seeded admin", "identity_id", admin.ID, "username", admin.Username)
	}
	return created, nil
}
