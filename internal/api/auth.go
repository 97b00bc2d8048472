package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dyike/QuantPilot/internal/models"
)

type AuthAPI struct{ c *Client }

func (a *AuthAPI) Login(ctx context.Context, creds models.Credentials) (*models.LoginReply, error) {
	if err := requireCredentials(creds); err != nil {
		return nil, err
	}
	var out models.LoginReply
	err := a.c.do(ctx, call{method: http.MethodPost, path: "/auth/login", body: creds, out: &out})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) Register(ctx context.Context, creds models.Credentials) (*models.LoginReply, error) {
	if err := requireCredentials(creds); err != nil {
		return nil, err
	}
	var out models.LoginReply
	err := a.c.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: creds, out: &out})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) Verify(ctx context.Context) (*models.VerifyReply, error) {
	var out models.VerifyReply
	if err := a.c.get(ctx, "/auth/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) Profile(ctx context.Context) (*models.UserInfo, error) {
	var out models.UserInfo
	if err := a.c.get(ctx, "/auth/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func requireCredentials(creds models.Credentials) error {
	if strings.TrimSpace(creds.Username) == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if creds.Password == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	return nil
}
