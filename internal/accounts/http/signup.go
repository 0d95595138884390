package http

import (
	"net/http"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/pkg/authsdk"
	"github.com/finlit/platform/pkg/httpx"
)

// SignupHandler serves the signup steps. Every step answers with the step
// the client should show next.
type SignupHandler struct {
	SignupService *service.SignupService
}

func writeNextStep(w http.ResponseWriter, step domain.Step) {
	httpx.WriteJSON(w, http.StatusOK, authsdk.NextStepResponse{NextStep: string(step)})
}

// HandleInitiate handles POST /v1/signup/initiate
//
//	@Summary		Start a signup
//	@Description	Creates a pending user and emails a verification code. Calling it again for an address still on the email step resends the code.
//	@Tags			Signup
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignupInitiateRequest	true	"Name and email"
//	@Success		200		{object}	authsdk.NextStepResponse
//	@Failure		400		{object}	authsdk.APIError	"Validation failed"
//	@Failure		429		{object}	authsdk.APIError	"Rate limited"
//	@Failure		503		{object}	authsdk.APIError	"Code could not be delivered"
//	@Router			/v1/signup/initiate [post].
func (h *SignupHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignupInitiateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	step, err := h.SignupService.Initiate(r.Context(), service.SignupInput{FullName: req.FullName, Email: req.Email})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeNextStep(w, step)
}

// HandleVerifyEmail handles POST /v1/signup/verify-email
//
//	@Summary		Verify the signup email code
//	@Tags			Signup
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyOTPRequest	true	"Email and code"
//	@Success		200		{object}	authsdk.NextStepResponse
//	@Failure		400		{object}	authsdk.APIError	"Validation failed"
//	@Failure		403		{object}	authsdk.APIError	"Code mismatch, expired, exhausted or missing"
//	@Failure		404		{object}	authsdk.APIError	"Unknown email"
//	@Failure		409		{object}	authsdk.APIError	"Step not available"
//	@Router			/v1/signup/verify-email [post].
func (h *SignupHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.advance(w, r, req.Email, service.VerifyEmailInput{OTP: req.OTP})
}

// HandleMobilePassword handles POST /v1/signup/mobile-password
//
//	@Summary		Set mobile number and password
//	@Description	Stores the mobile number and password and texts a verification code to the mobile.
//	@Tags			Signup
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MobilePasswordRequest	true	"Email, E.164 mobile and password"
//	@Success		200		{object}	authsdk.NextStepResponse
//	@Failure		400		{object}	authsdk.APIError	"Validation failed"
//	@Failure		409		{object}	authsdk.APIError	"Step not available"
//	@Failure		503		{object}	authsdk.APIError	"Code could not be delivered"
//	@Router			/v1/signup/mobile-password [post].
func (h *SignupHandler) HandleMobilePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.MobilePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.advance(w, r, req.Email, service.MobilePasswordInput{Mobile: req.Mobile, Password: req.Password})
}

// HandleVerifyMobile handles POST /v1/signup/verify-mobile
//
//	@Summary		Verify the signup mobile code
//	@Tags			Signup
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyOTPRequest	true	"Email and code"
//	@Success		200		{object}	authsdk.NextStepResponse
//	@Failure		403		{object}	authsdk.APIError	"Code mismatch, expired, exhausted or missing"
//	@Failure		409		{object}	authsdk.APIError	"Step not available"
//	@Router			/v1/signup/verify-mobile [post].
func (h *SignupHandler) HandleVerifyMobile(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.advance(w, r, req.Email, service.VerifyMobileInput{OTP: req.OTP})
}

func (h *SignupHandler) advance(w http.ResponseWriter, r *http.Request, email string, in service.StepInput) {
	_, step, err := h.SignupService.Advance(r.Context(), email, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeNextStep(w, step)
}

// HandleResendEmailOTP handles POST /v1/signup/resend-email-otp
//
//	@Summary		Resend the signup email code
//	@Tags			Signup
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EmailRequest	true	"Email"
//	@Success		200		{object}	authsdk.OKResponse
//	@Failure		409		{object}	authsdk.APIError	"Step not available"
//	@Failure		429		{object}	authsdk.APIError	"Cooldown active, see Retry-After"
//	@Router			/v1/signup/resend-email-otp [post].
func (h *SignupHandler) HandleResendEmailOTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.SignupService.ResendEmailOTP(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.OKResponse{OK: true})
}

// HandleResendMobileOTP handles POST /v1/signup/resend-mobile-otp
//
//	@Summary		Resend the signup mobile code
//	@Tags			Signup
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EmailRequest	true	"Email"
//	@Success		200		{object}	authsdk.OKResponse
//	@Failure		409		{object}	authsdk.APIError	"Step not available"
//	@Failure		429		{object}	authsdk.APIError	"Cooldown active, see Retry-After"
//	@Router			/v1/signup/resend-mobile-otp [post].
func (h *SignupHandler) HandleResendMobileOTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.SignupService.ResendMobileOTP(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.OKResponse{OK: true})
}

// HandleStatus handles GET /v1/signup/status
//
//	@Summary		Current signup step
//	@Tags			Signup
//	@Produce		json
//	@Param			email	query		string	true	"Email"
//	@Success		200		{object}	authsdk.NextStepResponse
//	@Failure		404		{object}	authsdk.APIError	"Unknown email"
//	@Router			/v1/signup/status [get].
func (h *SignupHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	step, err := h.SignupService.Status(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeNextStep(w, step)
}
