package http

import (
	"context"
	"net/http"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/pkg/authsdk"
	"github.com/finlit/platform/pkg/httpx"
	"github.com/finlit/platform/pkg/idx"
)

// AdminHandler serves the user approval queue.
type AdminHandler struct {
	DirectoryService *service.DirectoryService
}

// HandleList handles GET /v1/admin/users
//
//	@Summary		List users
//	@Description	Lists user accounts, optionally filtered by approval status.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			status	query		string	false	"pending, approved, rejected or blocked"
//	@Success		200		{object}	authsdk.IdentityList
//	@Failure		400		{object}	authsdk.APIError	"Unknown status"
//	@Failure		401		{object}	authsdk.APIError	"Invalid or missing session"
//	@Failure		403		{object}	authsdk.APIError	"Not an admin session"
//	@Router			/v1/admin/users [get].
func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	idents, err := h.DirectoryService.ListUsers(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := authsdk.IdentityList{Identities: make([]authsdk.Identity, 0, len(idents))}
	for _, ident := range idents {
		out.Identities = append(out.Identities, toIdentity(ident))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleApprove handles POST /v1/admin/users/{id}/approve
//
//	@Summary		Approve a user
//	@Description	Approves a user who has verified both email and mobile.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Identity ID"
//	@Success		200	{object}	authsdk.Identity
//	@Failure		404	{object}	authsdk.APIError	"Unknown user"
//	@Failure		409	{object}	authsdk.APIError	"User has not finished verification"
//	@Router			/v1/admin/users/{id}/approve [post].
func (h *AdminHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.DirectoryService.Approve)
}

// HandleReject handles POST /v1/admin/users/{id}/reject
//
//	@Summary		Reject a user
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Identity ID"
//	@Success		200	{object}	authsdk.Identity
//	@Failure		404	{object}	authsdk.APIError	"Unknown user"
//	@Router			/v1/admin/users/{id}/reject [post].
func (h *AdminHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.DirectoryService.Reject)
}

// HandleBlock handles POST /v1/admin/users/{id}/block
//
//	@Summary		Block a user
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Identity ID"
//	@Success		200	{object}	authsdk.Identity
//	@Failure		404	{object}	authsdk.APIError	"Unknown user"
//	@Router			/v1/admin/users/{id}/block [post].
func (h *AdminHandler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.DirectoryService.Block)
}

func (h *AdminHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (domain.Identity, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ident, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toIdentity(ident))
}

// HandleDelete handles DELETE /v1/admin/users/{id}
//
//	@Summary		Delete a user
//	@Description	Removes the user and any pending codes.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Identity ID"
//	@Success		204
//	@Failure		404	{object}	authsdk.APIError	"Unknown user"
//	@Router			/v1/admin/users/{id} [delete].
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.DirectoryService.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// pathID reads the {id} segment. Anything that is not a ULID cannot name an
// identity, so it is reported as not found.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		authsdk.ErrNotFound.WriteError(w)
		return "", false
	}
	return id.String(), true
}
