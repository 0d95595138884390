package domain

// Step is the next action an identity must take. It is derived from the
// identity and never stored.
type Step string

const (
	StepEmailOTP         Step = "email_otp"
	StepMobilePassword   Step = "mobile_password"
	StepVerifyMobileOTP  Step = "verify_mobile_otp"
	StepAwaitingApproval Step = "awaiting_approval"
	StepLogin            Step = "login"
	StepSupport          Step = "support"
)

// NextStep derives the current step from an identity.
func NextStep(i Identity) Step {
	if !i.EmailVerified {
		return StepEmailOTP
	}
	if i.Role.RequiresMobile() {
		if i.Mobile == "" || !i.HasPassword() {
			return StepMobilePassword
		}
		if !i.MobileVerified {
			return StepVerifyMobileOTP
		}
	}
	switch i.ApprovalStatus {
	case ApprovalApproved:
		return StepLogin
	case ApprovalRejected, ApprovalBlocked:
		return StepSupport
	default:
		return StepAwaitingApproval
	}
}

// Rank orders the signup steps. Every terminal step shares the last rank.
func (s Step) Rank() int {
	switch s {
	case StepEmailOTP:
		return 0
	case StepMobilePassword:
		return 1
	case StepVerifyMobileOTP:
		return 2
	default:
		return 3
	}
}
