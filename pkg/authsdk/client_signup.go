package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

func (c *SDKClient) nextStep(ctx context.Context, path string, body any) (string, error) {
	var out NextStepResponse
	if err := c.call(ctx, http.MethodPost, path, body, "", &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.NextStep, nil
}

// SignupInitiate starts a signup and sends an email code.
func (c *SDKClient) SignupInitiate(ctx context.Context, fullName, email string) (string, error) {
	return c.nextStep(ctx, "/v1/signup/initiate", SignupInitiateRequest{FullName: fullName, Email: email})
}

// VerifyEmail submits the signup email code.
func (c *SDKClient) VerifyEmail(ctx context.Context, email, otp string) (string, error) {
	return c.nextStep(ctx, "/v1/signup/verify-email", VerifyOTPRequest{Email: email, OTP: otp})
}

// SubmitMobilePassword sets the mobile number and password and sends a
// mobile code.
func (c *SDKClient) SubmitMobilePassword(ctx context.Context, email, mobile, password string) (string, error) {
	return c.nextStep(ctx, "/v1/signup/mobile-password", MobilePasswordRequest{
		Email:    email,
		Mobile:   mobile,
		Password: password,
	})
}

// VerifyMobile submits the signup mobile code.
func (c *SDKClient) VerifyMobile(ctx context.Context, email, otp string) (string, error) {
	return c.nextStep(ctx, "/v1/signup/verify-mobile", VerifyOTPRequest{Email: email, OTP: otp})
}

// ResendEmailOTP requests a fresh signup email code.
func (c *SDKClient) ResendEmailOTP(ctx context.Context, email string) error {
	var out OKResponse
	return c.call(ctx, http.MethodPost, "/v1/signup/resend-email-otp", EmailRequest{Email: email}, "", &out, http.StatusOK)
}

// ResendMobileOTP requests a fresh signup mobile code.
func (c *SDKClient) ResendMobileOTP(ctx context.Context, email string) error {
	var out OKResponse
	return c.call(ctx, http.MethodPost, "/v1/signup/resend-mobile-otp", EmailRequest{Email: email}, "", &out, http.StatusOK)
}

// SignupStatus reports the next step for an email.
func (c *SDKClient) SignupStatus(ctx context.Context, email string) (string, error) {
	var out NextStepResponse
	path := "/v1/signup/status?email=" + url.QueryEscape(email)
	if err := c.call(ctx, http.MethodGet, path, nil, "", &out, http.StatusOK); err != nil {
		return "", err
	}
	return out.NextStep, nil
}
