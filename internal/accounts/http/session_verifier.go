package http

import (
	"context"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/pkg/httpx"
	"github.com/finlit/platform/pkg/jwtx"
)

// sessionVerifier lets the access guard call the session service.
type sessionVerifier struct {
	sessions *service.SessionService
}

func (v sessionVerifier) VerifySession(ctx context.Context, token, requiredRole string, client httpx.ClientInfo) (jwtx.Claims, error) {
	return v.sessions.Verify(ctx, token, domain.Role(requiredRole), clientInfo(client))
}

func clientInfo(c httpx.ClientInfo) domain.ClientInfo {
	return domain.ClientInfo{IP: c.IP, UserAgent: c.UserAgent}
}
