package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/internal/accounts/store"
	"github.com/stretchr/testify/require"
)

func TestDirectoryModeration(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedAdmin(t)

	done := e.signUp(t, "done@example.com")
	_, err := e.signup.Initiate(ctx, service.SignupInput{FullName: "Half Way", Email: "half@example.com"})
	require.NoError(t, err)

	all, err := e.directory.ListUsers(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2, "admins are not listed")

	pending, err := e.directory.ListUsers(ctx, "pending")
	require.NoError(t, err)
	require.Len(t, pending, 2)

	_, err = e.directory.ListUsers(ctx, "weird")
	require.ErrorIs(t, err, service.ErrValidation)

	t.Run("approve needs verification", func(t *testing.T) {
		half, err := e.st.Identities().GetByEmail(ctx, "half@example.com")
		require.NoError(t, err)

		_, err = e.directory.Approve(ctx, half.ID)
		var se *service.StepError
		require.True(t, errors.As(err, &se))
		require.Equal(t, domain.StepEmailOTP, se.NextStep)

		got, err := e.directory.Get(ctx, half.ID)
		require.NoError(t, err)
		require.Equal(t, domain.ApprovalPending, got.ApprovalStatus)
	})

	t.Run("approve then block", func(t *testing.T) {
		got, err := e.directory.Approve(ctx, done.ID)
		require.NoError(t, err)
		require.Equal(t, domain.ApprovalApproved, got.ApprovalStatus)

		got, err = e.directory.Block(ctx, done.ID)
		require.NoError(t, err)
		require.Equal(t, domain.ApprovalBlocked, got.ApprovalStatus)
		require.Equal(t, domain.StepSupport, domain.NextStep(got))

		blocked, err := e.directory.ListUsers(ctx, "blocked")
		require.NoError(t, err)
		require.Len(t, blocked, 1)
		require.Equal(t, done.ID, blocked[0].ID)
	})

	t.Run("reject", func(t *testing.T) {
		half, err := e.st.Identities().GetByEmail(ctx, "half@example.com")
		require.NoError(t, err)
		got, err := e.directory.Reject(ctx, half.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StepEmailOTP, domain.NextStep(got), "unverified users stay on their step")
		require.Equal(t, domain.ApprovalRejected, got.ApprovalStatus)
	})

	t.Run("admins are not moderated", func(t *testing.T) {
		admin, err := e.st.Identities().GetByUsername(ctx, "root")
		require.NoError(t, err)
		_, err = e.directory.Block(ctx, admin.ID)
		require.ErrorIs(t, err, service.ErrNotFound)
		require.ErrorIs(t, e.directory.Delete(ctx, admin.ID), service.ErrNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := e.directory.Approve(ctx, "01J00000000000000000000000")
		require.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestDirectoryDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.signup.Initiate(ctx, service.SignupInput{FullName: "Gone Soon", Email: "gone@example.com"})
	require.NoError(t, err)
	ident, err := e.st.Identities().GetByEmail(ctx, "gone@example.com")
	require.NoError(t, err)

	require.NoError(t, e.directory.Delete(ctx, ident.ID))

	_, err = e.directory.Get(ctx, ident.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = e.st.OTPChallenges().Get(ctx, domain.ChallengeKey{IdentityID: ident.ID, Channel: domain.ChannelEmail, Purpose: domain.PurposeSignup})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, e.directory.Delete(ctx, ident.ID), service.ErrNotFound)

	// The address can sign up again.
	step, err := e.signup.Initiate(ctx, service.SignupInput{FullName: "Back Again", Email: "gone@example.com"})
	require.NoError(t, err)
	require.Equal(t, domain.StepEmailOTP, step)
}
