package workoutapi

import (
	"context"
	"net/http"
	"strings"
)

// Register creates an account and returns the server's confirmation message.
func (c *Client) Register(ctx context.Context, creds Credentials) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, call{
		op:     "register",
		method: http.MethodPost,
		path:   "/users/register",
		body:   creds,
		out:    &resp,
	})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var resp struct {
		Access string `json:"access"`
	}
	err := c.do(ctx, call{
		op:     "login",
		method: http.MethodPost,
		path:   "/users/login",
		body:   creds,
		out:    &resp,
	})
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(resp.Access)
	if token == "" {
		return "", &Error{Op: "login", Kind: KindMalformed, Status: http.StatusOK, Message: "response missing access token"}
	}
	return token, nil
}

// FetchIdentity resolves token to the user it was issued for.
func (c *Client) FetchIdentity(ctx context.Context, token string) (Identity, error) {
	var resp struct {
		User *struct {
			ID string `json:"_id"`
		} `json:"user"`
	}
	err := c.do(ctx, call{
		op:     "fetch_identity",
		method: http.MethodGet,
		path:   "/users/details",
		token:  token,
		authed: true,
		out:    &resp,
	})
	if err != nil {
		return Identity{}, err
	}
	if resp.User == nil || strings.TrimSpace(resp.User.ID) == "" {
		return Identity{}, &Error{Op: "fetch_identity", Kind: KindMalformed, Status: http.StatusOK, Message: "response missing user id"}
	}
	return Identity{UserID: resp.User.ID}, nil
}
