package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// ListUsers lists user identities, optionally filtered by approval status.
func (c *SDKClient) ListUsers(ctx context.Context, token, status string) ([]Identity, error) {
	path := "/v1/admin/users"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	var out IdentityList
	if err := c.call(ctx, http.MethodGet, path, nil, token, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Identities, nil
}

func (c *SDKClient) userAction(ctx context.Context, token, id, action string) (*Identity, error) {
	var out Identity
	path := "/v1/admin/users/" + url.PathEscape(id) + "/" + action
	if err := c.call(ctx, http.MethodPost, path, nil, token, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApproveUser approves a fully verified user.
func (c *SDKClient) ApproveUser(ctx context.Context, token, id string) (*Identity, error) {
	return c.userAction(ctx, token, id, "approve")
}

// RejectUser rejects a pending user.
func (c *SDKClient) RejectUser(ctx context.Context, token, id string) (*Identity, error) {
	return c.userAction(ctx, token, id, "reject")
}

// BlockUser blocks a user.
func (c *SDKClient) BlockUser(ctx context.Context, token, id string) (*Identity, error) {
	return c.userAction(ctx, token, id, "block")
}

// DeleteUser removes a user and any pending codes.
func (c *SDKClient) DeleteUser(ctx context.Context, token, id string) error {
	return c.call(ctx, http.MethodDelete, "/v1/admin/users/"+url.PathEscape(id), nil, token, nil, http.StatusNoContent)
}
