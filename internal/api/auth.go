package api

import (
	"context"
	"net/http"
	"strings"

	apperrors "railmon/internal/errors"
)

const (
	accessCookie  = "access_token_cookie"
	refreshCookie = "refresh_token_cookie"
)

// User is the signed-in account.
type User struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Email       string `json:"email" yaml:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty" yaml:"phoneNumber,omitempty"`
	Role        string `json:"role" yaml:"role"`
}

// IsAdmin reports whether the account may list and update every complaint.
func (u User) IsAdmin() bool {
	return strings.EqualFold(u.Role, "admin")
}

// wireUser accepts both spellings of the phone field; sign-in and profile
// disagree on it.
type wireUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	PhoneSnake  string `json:"phone_number"`
	Role        string `json:"role"`
}

func (w wireUser) user() User {
	phone := w.PhoneNumber
	if phone == "" {
		phone = w.PhoneSnake
	}
	return User{ID: w.ID, Name: w.Name, Email: w.Email, PhoneNumber: phone, Role: w.Role}
}

// SignInResult is the answer to a successful sign-in.
type SignInResult struct {
	User         User
	AccessToken  string
	RefreshToken string
}

// SignIn exchanges credentials for tokens.
//
// Returns:
//   - *SignInResult: Account and tokens
//   - error: LoginFailedError when credentials are rejected or no token comes back
func (c *Client) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	var resp struct {
		Success      bool     `json:"success"`
		Message      string   `json:"message"`
		User         wireUser `json:"user"`
		AccessToken  string   `json:"access_token"`
		RefreshToken string   `json:"refresh_token"`
	}

	err := c.call(ctx, request{
		op:     "signin",
		method: http.MethodPost,
		path:   "/auth/signin",
		body:   map[string]string{"email": email, "password": password},
	}, &resp)
	if err != nil {
		if apperrors.IsSessionExpired(err) {
			return nil, apperrors.NewLoginFailedError("credentials rejected", err)
		}
		return nil, apperrors.NewLoginFailedError("sign-in request failed", err)
	}
	if resp.AccessToken == "" {
		return nil, apperrors.NewLoginFailedError("no access token in sign-in response", nil)
	}

	c.setTokenCookies(resp.AccessToken, resp.RefreshToken)

	return &SignInResult{
		User:         resp.User.user(),
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// Profile returns the account behind the current session.
func (c *Client) Profile(ctx context.Context) (User, error) {
	var resp struct {
		Success bool     `json:"success"`
		User    wireUser `json:"user"`
	}
	err := c.call(ctx, request{
		op:     "profile",
		method: http.MethodGet,
		path:   "/auth/profile",
		authed: true,
	}, &resp)
	if err != nil {
		return User{}, err
	}
	return resp.User.user(), nil
}

// Refresh trades the refresh token for a new access token. It is not
// retried; a 401 here means the refresh token itself is dead.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken != "" {
		c.setTokenCookies("", refreshToken)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := c.call(ctx, request{
		op:     "refresh",
		method: http.MethodPost,
		path:   "/auth/refresh",
		bearer: refreshToken,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", apperrors.NewSessionExpiredError("no access token in refresh response")
	}

	c.setTokenCookies(resp.AccessToken, "")
	return resp.AccessToken, nil
}

// Logout ends the session on the backend and forgets the cookies, even
// when the backend call fails.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	defer c.clearCookies()
	return c.call(ctx, request{
		op:     "logout",
		method: http.MethodPost,
		path:   "/auth/logout",
		bearer: accessToken,
	}, nil)
}
