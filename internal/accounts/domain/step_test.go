package domain_test

import (
	"testing"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/stretchr/testify/require"
)

func TestNextStep(t *testing.T) {
	verified := domain.Identity{
		Role:           domain.RoleUser,
		Email:          "a@x.io",
		Mobile:         "+15550100",
		PasswordHash:   "$argon2id$...",
		EmailVerified:  true,
		MobileVerified: true,
		ApprovalStatus: domain.ApprovalPending,
	}

	cases := []struct {
		name   string
		mutate func(i *domain.Identity)
		want   domain.Step
	}{
		{"new user", func(i *domain.Identity) { *i = domain.Identity{Role: domain.RoleUser} }, domain.StepEmailOTP},
		{"email unverified wins over everything", func(i *domain.Identity) {
			i.EmailVerified = false
			i.ApprovalStatus = domain.ApprovalApproved
		}, domain.StepEmailOTP},
		{"no mobile", func(i *domain.Identity) { i.Mobile = ""; i.MobileVerified = false }, domain.StepMobilePassword},
		{"no password", func(i *domain.Identity) { i.PasswordHash = "" }, domain.StepMobilePassword},
		{"mobile unverified", func(i *domain.Identity) { i.MobileVerified = false }, domain.StepVerifyMobileOTP},
		{"pending", func(i *domain.Identity) {}, domain.StepAwaitingApproval},
		{"approved", func(i *domain.Identity) { i.ApprovalStatus = domain.ApprovalApproved }, domain.StepLogin},
		{"rejected", func(i *domain.Identity) { i.ApprovalStatus = domain.ApprovalRejected }, domain.StepSupport},
		{"blocked", func(i *domain.Identity) { i.ApprovalStatus = domain.ApprovalBlocked }, domain.StepSupport},
		{"admin skips mobile", func(i *domain.Identity) {
			i.Role = domain.RoleAdmin
			i.Mobile = ""
			i.MobileVerified = false
			i.ApprovalStatus = domain.ApprovalApproved
		}, domain.StepLogin},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ident := verified
			tc.mutate(&ident)

			got := domain.NextStep(ident)
			require.Equal(t, tc.want, got)
			require.Equal(t, got, domain.NextStep(ident), "must be deterministic")
		})
	}
}

func TestStepRank(t *testing.T) {
	require.Less(t, domain.StepEmailOTP.Rank(), domain.StepMobilePassword.Rank())
	require.Less(t, domain.StepMobilePassword.Rank(), domain.StepVerifyMobileOTP.Rank())
	require.Less(t, domain.StepVerifyMobileOTP.Rank(), domain.StepAwaitingApproval.Rank())
	require.Equal(t, domain.StepLogin.Rank(), domain.StepSupport.Rank())
}

func TestFullyVerified(t *testing.T) {
	admin := domain.Identity{Role: domain.RoleAdmin, EmailVerified: true}
	require.True(t, admin.FullyVerified())

	user := domain.Identity{Role: domain.RoleUser, EmailVerified: true, Mobile: "+15550100", PasswordHash: "h"}
	require.False(t, user.FullyVerified())
	user.MobileVerified = true
	require.True(t, user.FullyVerified())
}

func TestCookieName(t *testing.T) {
	require.Equal(t, "userToken", domain.CookieName(domain.RoleUser))
	require.Equal(t, "adminToken", domain.CookieName(domain.RoleAdmin))
}
