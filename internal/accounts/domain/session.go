package domain

import "time"

// Session cookie names.
const (
	CookieUser    = "userToken"
	CookieAdmin   = "adminToken"
	CookieGeneric = "session"
)

// CookieName returns the cookie a session for role is carried in.
func CookieName(role Role) string {
	if role == RoleAdmin {
		return CookieAdmin
	}
	return CookieUser
}

// ClientInfo identifies the client a session is bound to.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// SessionToken is a minted session.
type SessionToken struct {
	Token      string
	Role       Role
	CookieName string
	ExpiresAt  time.Time
}
