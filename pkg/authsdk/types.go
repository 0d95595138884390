package authsdk

import "time"

// Steps reported in NextStepResponse.NextStep.
const (
	StepEmailOTP         = "email_otp"
	StepMobilePassword   = "mobile_password"
	StepVerifyMobileOTP  = "verify_mobile_otp"
	StepAwaitingApproval = "awaiting_approval"
	StepLogin            = "login"
	StepSupport          = "support"
)

// ============================================================================
// Signup
// ============================================================================

// SignupInitiateRequest starts a signup.
type SignupInitiateRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// VerifyOTPRequest submits a code sent to the account's email or mobile.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// EmailRequest names an account by email.
type EmailRequest struct {
	Email string `json:"email"`
}

// MobilePasswordRequest sets the mobile number (E.164) and password.
type MobilePasswordRequest struct {
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

// NextStepResponse tells the client which step to show next.
type NextStepResponse struct {
	NextStep string `json:"nextStep"`
}

// OKResponse acknowledges a request with no other result.
type OKResponse struct {
	OK bool `json:"ok"`
}

// MessageResponse carries a human-readable acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// Login and sessions
// ============================================================================

// LoginRequest starts a user login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLoginRequest starts an admin login. Identifier is a username or email.
type AdminLoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// AdminVerifyRequest completes an admin login.
type AdminVerifyRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

// SessionResponse is returned when a session is minted. The same token is
// also set as an HttpOnly cookie.
type SessionResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ============================================================================
// Password reset
// ============================================================================

// PasswordResetRequest sets a new password using an emailed code.
type PasswordResetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// ============================================================================
// Identities
// ============================================================================

// Identity is the public view of an account.
type Identity struct {
	ID             string    `json:"id"`
	Role           string    `json:"role"`
	FullName       string    `json:"fullName"`
	Username       string    `json:"username,omitempty"`
	Email          string    `json:"email"`
	Mobile         string    `json:"mobile,omitempty"`
	EmailVerified  bool      `json:"emailVerified"`
	MobileVerified bool      `json:"mobileVerified"`
	ApprovalStatus string    `json:"approvalStatus"`
	NextStep       string    `json:"nextStep"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// IdentityList is returned by the admin user listing.
type IdentityList struct {
	Identities []Identity `json:"identities"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
