package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/campusmarket/storefront/internal/domain"
)

// Session is the result of a successful login.
type Session struct {
	Token    string
	Identity domain.Identity
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (Session, error) {
	const op = "login"
	var resp loginResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: creds}, &resp); err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.check(op, resp); err != nil {
		return Session{}, err
	}
	return Session{Token: resp.Token, Identity: resp.User.toDomain()}, nil
}

// Register creates the account. It does not log in.
func (c *Client) Register(ctx context.Context, profile domain.Profile) (domain.Identity, error) {
	const op = "register"
	var resp userResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: profile}, &resp); err != nil {
		return domain.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.check(op, resp); err != nil {
		return domain.Identity{}, err
	}
	return resp.User.toDomain(), nil
}

// Me resolves the bearer token to an identity.
func (c *Client) Me(ctx context.Context) (domain.Identity, error) {
	const op = "me"
	var resp userResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &resp); err != nil {
		return domain.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.check(op, resp); err != nil {
		return domain.Identity{}, err
	}
	return resp.User.toDomain(), nil
}
