package http

import (
	"errors"
	"net/http"

	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/pkg/authsdk"
	"github.com/finlit/platform/pkg/httpx"
)

// LoginHandler serves user and admin login, logout and the caller's profile.
type LoginHandler struct {
	LoginService     *service.LoginService
	DirectoryService *service.DirectoryService
	SecureCookies    bool
}

// HandleLoginInitiate handles POST /v1/login/initiate
//
//	@Summary		Start a user login
//	@Description	Checks the password and emails a login code. Unknown emails and wrong passwords get the same answer.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Email and password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		401		{object}	authsdk.APIError	"Invalid credentials"
//	@Failure		409		{object}	authsdk.APIError	"Account cannot log in yet"
//	@Failure		503		{object}	authsdk.APIError	"Code could not be delivered"
//	@Router			/v1/login/initiate [post].
func (h *LoginHandler) HandleLoginInitiate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.LoginService.InitiateLogin(r.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "OTP sent to email"})
}

// HandleLoginVerify handles POST /v1/login/verify
//
//	@Summary		Complete a user login
//	@Description	Checks the emailed code, sets the userToken cookie and returns the session.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyOTPRequest	true	"Email and code"
//	@Success		200		{object}	authsdk.SessionResponse
//	@Failure		403		{object}	authsdk.APIError	"Code mismatch, expired, exhausted or missing"
//	@Failure		409		{object}	authsdk.APIError	"Account cannot log in"
//	@Router			/v1/login/verify [post].
func (h *LoginHandler) HandleLoginVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tok, err := h.LoginService.CompleteLogin(r.Context(),
		service.VerifyOTPInput{Email: req.Email, OTP: req.OTP},
		clientInfo(httpx.ClientInfoFromRequest(r)),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	setSessionCookie(w, tok, h.SecureCookies)
	httpx.WriteJSON(w, http.StatusOK, toSession(tok))
}

// HandleAdminLogin handles POST /v1/admin/login
//
//	@Summary		Start an admin login
//	@Description	Checks the password for a username or email and emails a login code.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.AdminLoginRequest	true	"Username or email, and password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		401		{object}	authsdk.APIError	"Invalid credentials"
//	@Router			/v1/admin/login [post].
func (h *LoginHandler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.AdminLoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.LoginService.AdminLogin(r.Context(), service.AdminLoginInput{Identifier: req.Identifier, Password: req.Password})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "OTP sent to email"})
}

// HandleAdminVerify handles POST /v1/admin/verify-otp
//
//	@Summary		Complete an admin login
//	@Description	Checks the emailed code, sets the adminToken cookie and returns the session.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.AdminVerifyRequest	true	"Username or email, and code"
//	@Success		200		{object}	authsdk.SessionResponse
//	@Failure		403		{object}	authsdk.APIError	"Code mismatch, expired, exhausted or missing"
//	@Router			/v1/admin/verify-otp [post].
func (h *LoginHandler) HandleAdminVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.AdminVerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tok, err := h.LoginService.AdminVerify(r.Context(),
		service.AdminVerifyInput{Identifier: req.Identifier, OTP: req.OTP},
		clientInfo(httpx.ClientInfoFromRequest(r)),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	setSessionCookie(w, tok, h.SecureCookies)
	httpx.WriteJSON(w, http.StatusOK, toSession(tok))
}

// HandleLogout handles POST /v1/logout
//
//	@Summary		Log out
//	@Description	Clears the session cookies. Sessions are stateless, so a copied token stays valid until it expires.
//	@Tags			Login
//	@Success		204
//	@Router			/v1/logout [post].
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookies(w, h.SecureCookies)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /v1/me
//
//	@Summary		Current user
//	@Tags			Login
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.Identity
//	@Failure		401	{object}	authsdk.APIError	"Invalid or missing session"
//	@Failure		403	{object}	authsdk.APIError	"Not a user session"
//	@Router			/v1/me [get].
func (h *LoginHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sub, ok := httpx.SubjectFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	ident, err := h.DirectoryService.Get(r.Context(), sub)
	if err != nil {
		// The session outlived its identity.
		if errors.Is(err, service.ErrNotFound) {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toIdentity(ident))
}
