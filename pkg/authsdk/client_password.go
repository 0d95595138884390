package authsdk

import (
	"context"
	"net/http"
)

// ForgotPassword requests a password reset code. The service answers the
// same way whether or not the account exists.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) error {
	var out MessageResponse
	return c.call(ctx, http.MethodPost, "/v1/password/forgot", EmailRequest{Email: email}, "", &out, http.StatusAccepted)
}

// ResetPassword sets a new password using the emailed code.
func (c *SDKClient) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	var out OKResponse
	return c.call(ctx, http.MethodPost, "/v1/password/reset", PasswordResetRequest{
		Email:       email,
		OTP:         otp,
		NewPassword: newPassword,
	}, "", &out, http.StatusOK)
}
