// Package identity talks to the hosted auth service: a GoTrue-compatible
// REST API under /auth/v1 and PostgREST RPCs under /rest/v1/rpc.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

// Config holds the endpoint and credentials of the hosted service.
type Config struct {
	BaseURL string
	AnonKey string
	// CallbackURL is where emailed links send the browser back to.
	CallbackURL string
	Timeout     time.Duration
}

// Client implements ports.IdentityProvider.
type Client struct {
	baseURL     string
	anonKey     string
	callbackURL string
	http        *http.Client
	now         func() time.Time
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		anonKey:     cfg.AnonKey,
		callbackURL: cfg.CallbackURL,
		http:        &http.Client{Timeout: timeout},
		now:         time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
}

func (c *Client) tokens(r tokenResponse) domain.Tokens {
	t := domain.Tokens{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	switch {
	case r.ExpiresAt > 0:
		t.ExpiresAt = time.Unix(r.ExpiresAt, 0).UTC()
	case r.ExpiresIn > 0:
		t.ExpiresAt = c.now().Add(time.Duration(r.ExpiresIn) * time.Second).UTC()
	}
	return t
}

type userResponse struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (domain.Tokens, error) {
	var out tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &out); err != nil {
		return domain.Tokens{}, err
	}
	return c.tokens(out), nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

func (c *Client) SendMagicLink(ctx context.Context, email string, createUser bool, metadata map[string]string) error {
	body := map[string]any{"email": email, "create_user": createUser}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	return c.do(ctx, http.MethodPost, c.withRedirect("/auth/v1/otp"), "", body, nil)
}

func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, c.withRedirect("/auth/v1/recover"), "", map[string]string{"email": email}, nil)
}

func (c *Client) UpdateUser(ctx context.Context, accessToken string, attrs ports.UserAttributes) error {
	body := map[string]any{}
	if attrs.Password != "" {
		body["password"] = attrs.Password
	}
	if attrs.FullName != "" {
		body["data"] = map[string]string{"full_name": attrs.FullName}
	}
	if len(body) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPut, "/auth/v1/user", accessToken, body, nil)
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	body := map[string]string{"type": ports.OTPSignup, "email": email}
	return c.do(ctx, http.MethodPost, c.withRedirect("/auth/v1/resend"), "", body, nil)
}

func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.IdentityUser, error) {
	var out userResponse
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &out); err != nil {
		return nil, err
	}
	u := &domain.IdentityUser{
		ID:            out.ID,
		Email:         out.Email,
		EmailVerified: out.EmailConfirmedAt != nil,
	}
	if name, ok := out.UserMetadata["full_name"].(string); ok {
		u.FullName = name
	}
	return u, nil
}

// VerifyOTP exchanges the token_hash of an emailed link for a session.
func (c *Client) VerifyOTP(ctx context.Context, otpType, token string) (domain.Tokens, error) {
	var out tokenResponse
	body := map[string]string{"type": otpType, "token_hash": token}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/verify", "", body, &out); err != nil {
		return domain.Tokens{}, err
	}
	if out.AccessToken == "" {
		return domain.Tokens{}, &ports.IdentityError{Status: http.StatusUnauthorized, Message: "verification returned no session"}
	}
	return c.tokens(out), nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error) {
	var out tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &out); err != nil {
		return domain.Tokens{}, err
	}
	return c.tokens(out), nil
}

func (c *Client) VerifyAdminCredentials(ctx context.Context, email, password string) (bool, error) {
	return c.rpcBool(ctx, "verify_admin_credentials", map[string]string{"email": email, "password": password})
}

func (c *Client) IsAdmin(ctx context.Context, email string) (bool, error) {
	return c.rpcBool(ctx, "is_admin", map[string]string{"email": email})
}

func (c *Client) rpcBool(ctx context.Context, fn string, args any) (bool, error) {
	var out bool
	if err := c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+fn, "", args, &out); err != nil {
		return false, fmt.Errorf("rpc %s: %w", fn, err)
	}
	return out, nil
}

func (c *Client) withRedirect(path string) string {
	if c.callbackURL == "" {
		return path
	}
	return path + "?redirect_to=" + url.QueryEscape(c.callbackURL)
}

// do sends a JSON request. The anon key authorizes the call unless a user
// access token is given.
func (c *Client) do(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("identity: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	bearer := c.anonKey
	if accessToken != "" {
		bearer = accessToken
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: identity: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("identity: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("identity: decode response: %w", err)
	}
	return nil
}

// errorBody covers the error shapes of both the auth and the REST API.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func decodeError(status int, raw []byte) error {
	ie := &ports.IdentityError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		ie.Message = strings.TrimSpace(string(raw))
		return ie
	}

	ie.Code = eb.ErrorCode
	if ie.Code == "" {
		var code string
		if json.Unmarshal(eb.Code, &code) == nil {
			ie.Code = code
		} else if eb.Error != "" {
			ie.Code = eb.Error
		}
	}
	for _, m := range []string{eb.Msg, eb.ErrorDescription, eb.Message, eb.Error} {
		if m != "" {
			ie.Message = m
			break
		}
	}
	if ie.Message == "" {
		ie.Message = http.StatusText(status)
	}
	return ie
}
