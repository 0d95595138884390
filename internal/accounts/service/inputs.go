package service

import "github.com/finlit/platform/internal/accounts/domain"

type SignupInput struct {
	FullName string `json:"fullName" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
}

type EmailInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// StepInput is the payload for one signup step.
type StepInput interface {
	Step() domain.Step
}

type VerifyEmailInput struct {
	OTP string `json:"otp" validate:"required,numeric,len=6"`
}

func (VerifyEmailInput) Step() domain.Step { return domain.StepEmailOTP }

type MobilePasswordInput struct {
	Mobile   string `json:"mobile" validate:"required,e164"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func (MobilePasswordInput) Step() domain.Step { return domain.StepMobilePassword }

type VerifyMobileInput struct {
	OTP string `json:"otp" validate:"required,numeric,len=6"`
}

func (VerifyMobileInput) Step() domain.Step { return domain.StepVerifyMobileOTP }

type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type VerifyOTPInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
	OTP   string `json:"otp" validate:"required,numeric,len=6"`
}

type AdminLoginInput struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=128"`
}

type AdminVerifyInput struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	OTP        string `json:"otp" validate:"required,numeric,len=6"`
}

type PasswordResetInput struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	OTP         string `json:"otp" validate:"required,numeric,len=6"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}
