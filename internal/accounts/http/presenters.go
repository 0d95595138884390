package http

import (
	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/pkg/authsdk"
)

func toIdentity(i domain.Identity) authsdk.Identity {
	return authsdk.Identity{
		ID:             i.ID,
		Role:           string(i.Role),
		FullName:       i.FullName,
		Username:       i.Username,
		Email:          i.Email,
		Mobile:         i.Mobile,
		EmailVerified:  i.EmailVerified,
		MobileVerified: i.MobileVerified,
		ApprovalStatus: string(i.ApprovalStatus),
		NextStep:       string(domain.NextStep(i)),
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

func toSession(t domain.SessionToken) authsdk.SessionResponse {
	return authsdk.SessionResponse{
		Token:     t.Token,
		Role:      string(t.Role),
		ExpiresAt: t.ExpiresAt,
	}
}
