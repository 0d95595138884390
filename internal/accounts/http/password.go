package http

import (
	"net/http"

	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/pkg/authsdk"
	"github.com/finlit/platform/pkg/httpx"
)

type PasswordHandler struct {
	PasswordService *service.PasswordService
}

// HandleForgot handles POST /v1/password/forgot
//
//	@Summary		Request a password reset code
//	@Description	Emails a reset code when the address belongs to an account with a password. The response is the same either way.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EmailRequest	true	"Email"
//	@Success		202		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.APIError	"Validation failed"
//	@Router			/v1/password/forgot [post].
func (h *PasswordHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.PasswordService.Forgot(r.Context(), service.EmailInput{Email: req.Email}); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, authsdk.MessageResponse{
		Message: "if the account exists, a reset code has been sent",
	})
}

// HandleReset handles POST /v1/password/reset
//
//	@Summary		Reset a password
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordResetRequest	true	"Email, code and new password"
//	@Success		200		{object}	authsdk.OKResponse
//	@Failure		400		{object}	authsdk.APIError	"Validation failed"
//	@Failure		403		{object}	authsdk.APIError	"Code mismatch, expired, exhausted or missing"
//	@Router			/v1/password/reset [post].
func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.PasswordService.Reset(r.Context(), service.PasswordResetInput{
		Email:       req.Email,
		OTP:         req.OTP,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.OKResponse{OK: true})
}
