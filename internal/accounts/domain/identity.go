package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// RequiresMobile reports whether signup for this role includes the mobile
// number and mobile OTP steps.
func (r Role) RequiresMobile() bool { return r == RoleUser }

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalBlocked  ApprovalStatus = "blocked"
)

// ParseApprovalStatus accepts the four known statuses.
func ParseApprovalStatus(s string) (ApprovalStatus, bool) {
	switch st := ApprovalStatus(s); st {
	case ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalBlocked:
		return st, true
	}
	return "", false
}

// Identity is a user or admin account.
type Identity struct {
	ID             string
	Role           Role
	FullName       string
	Username       string // admins only; empty for users
	Email          string // lower-cased
	Mobile         string // E.164; empty until the mobile step
	PasswordHash   string // Argon2id PHC string; empty until set
	EmailVerified  bool
	MobileVerified bool
	ApprovalStatus ApprovalStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (i *Identity) HasPassword() bool { return i.PasswordHash != "" }

// FullyVerified reports whether every verification the role needs is done.
func (i *Identity) FullyVerified() bool {
	if !i.EmailVerified {
		return false
	}
	if i.Role.RequiresMobile() {
		return i.MobileVerified && i.Mobile != "" && i.HasPassword()
	}
	return true
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
