package authsdk

import (
	"context"
	"net/http"
)

// LoginInitiate checks the password and sends an email code.
func (c *SDKClient) LoginInitiate(ctx context.Context, email, password string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, "/v1/login/initiate", LoginRequest{Email: email, Password: password}, "", &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginVerify submits the login code and returns the user session.
func (c *SDKClient) LoginVerify(ctx context.Context, email, otp string) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.call(ctx, http.MethodPost, "/v1/login/verify", VerifyOTPRequest{Email: email, OTP: otp}, "", &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminLogin checks an admin's password and sends an email code.
func (c *SDKClient) AdminLogin(ctx context.Context, identifier, password string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, "/v1/admin/login", AdminLoginRequest{Identifier: identifier, Password: password}, "", &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminVerifyOTP submits the admin login code and returns the admin session.
func (c *SDKClient) AdminVerifyOTP(ctx context.Context, identifier, otp string) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.call(ctx, http.MethodPost, "/v1/admin/verify-otp", AdminVerifyRequest{Identifier: identifier, OTP: otp}, "", &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout clears the session cookies.
func (c *SDKClient) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/v1/logout", nil, "", nil, http.StatusNoContent)
}

// Me returns the signed-in user's profile. An empty token uses the cookie jar.
func (c *SDKClient) Me(ctx context.Context, token string) (*Identity, error) {
	var out Identity
	if err := c.call(ctx, http.MethodGet, "/v1/me", nil, token, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
