package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/store"
	"github.com/finlit/platform/pkg/slogx"
)

// DirectoryService reads identities and applies admin moderation to users.
type DirectoryService struct {
	Store      store.Store
	Challenges store.OTPChallenges

	Now func() time.Time
}

func (s *DirectoryService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns any identity by id.
func (s *DirectoryService) Get(ctx context.Context, id string) (domain.Identity, error) {
	ident, err := s.Store.Identities().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Identity{}, ErrNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	return ident, nil
}

// ListUsers returns users, optionally only those with the given approval
// status. An empty status lists everyone.
func (s *DirectoryService) ListUsers(ctx context.Context, status string) ([]domain.Identity, error) {
	f := store.IdentityFilter{Role: domain.RoleUser}
	if status != "" {
		st, ok := domain.ParseApprovalStatus(status)
		if !ok {
			return nil, &ValidationError{Details: map[string]string{
				"status": "must be one of: pending approved rejected blocked",
			}}
		}
		f.Status = st
	}

	out, err := s.Store.Identities().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	return out, nil
}

// Approve marks a fully verified user approved. Approving a user that has not
// finished verification fails with a *StepError carrying their current step.
func (s *DirectoryService) Approve(ctx context.Context, id string) (domain.Identity, error) {
	return s.setStatus(ctx, id, domain.ApprovalApproved, func(ident domain.Identity) error {
		if !ident.FullyVerified() {
			return &StepError{NextStep: domain.NextStep(ident)}
		}
		return nil
	})
}

func (s *DirectoryService) Reject(ctx context.Context, id string) (domain.Identity, error) {
	return s.setStatus(ctx, id, domain.ApprovalRejected, nil)
}

// Block locks a user out without deleting them.
func (s *DirectoryService) Block(ctx context.Context, id string) (domain.Identity, error) {
	return s.setStatus(ctx, id, domain.ApprovalBlocked, nil)
}

func (s *DirectoryService) setStatus(ctx context.Context, id string, status domain.ApprovalStatus, check func(domain.Identity) error) (domain.Identity, error) {
	var out domain.Identity
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		ident, err := loadUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(ident); err != nil {
				return err
			}
		}

		if err := tx.Identities().SetApprovalStatus(ctx, id, status, s.now()); err != nil {
			return fmt.Errorf("set approval status: %w", err)
		}
		out, err = tx.Identities().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return domain.Identity{}, err
	}

	slogx.FromContext(ctx).Info("approval status changed", "identity_id", id, "status", status)
	return out, nil
}

// Delete removes a user and any codes issued to them.
func (s *DirectoryService) Delete(ctx context.Context, id string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := loadUser(ctx, tx, id); err != nil {
			return err
		}
		return tx.Identities().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if err := s.Challenges.DeleteForIdentity(ctx, id); err != nil {
		return fmt.Errorf("delete challenges: %w", err)
	}

	slogx.FromContext(ctx).Info("identity deleted", "identity_id", id)
	return nil
}

// loadUser fetches a user-role identity. Admins are not moderated here, so
// they read as not found.
func loadUser(ctx context.Context, st store.Store, id string) (domain.Identity, error) {
	ident, err := st.Identities().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Identity{}, ErrNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	if ident.Role != domain.RoleUser {
		return domain.Identity{}, ErrNotFound
	}
	return ident, nil
}
