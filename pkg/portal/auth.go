package portal

import (
	"context"
	"net/http"
)

// loginResponse mirrors the backend's login payload.
type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		FullName string `json:"fullName"`
		Role     string `json:"role"`
	} `json:"user"`
}

// Login authenticates against the backend and installs the credential and
// actor into the session context.
func (c *Client) Login(ctx context.Context, email, password string) (*Actor, error) {
	var out loginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	actor := &Actor{
		ID:          out.User.ID,
		Role:        out.User.Role,
		DisplayName: out.User.FullName,
	}
	c.sess.SetAuth(out.Token, actor)
	return actor, nil
}

// Logout revokes the server-side token and tears the session down. The
// local session is cleared even when the revocation call fails; a dead
// backend must not trap the user in a logged-in shell.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.sess.Teardown()
	if err == ErrUnauthenticated {
		return nil
	}
	return err
}
