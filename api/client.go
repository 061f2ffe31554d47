package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the hosted QuantumAI backend.
	DefaultBaseURL = "https://quantumai-backend.onrender.com"

	DefaultTimeout = 30 * time.Second

	maxBody = 1 << 20
)

// Paths of the remote calls.
const (
	PathRegister       = "/api/register"
	PathLogin          = "/api/login"
	PathLogout         = "/api/logout"
	PathUserData       = "/api/user-data"
	PathChangePassword = "/api/change-password"
	PathForgotPassword = "/api/forgot-password"
	PathValidate       = "/api/validate"
	PathStartTrade     = "/api/start-trade"
)

// Client talks to the QuantumAI backend. It holds no session state; callers
// pass the bearer token to each authenticated call.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A trailing slash is trimmed so
// paths can be joined directly.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient swaps the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

type registerRequest struct {
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type forgotPasswordRequest struct {
	Phone string `json:"phone"`
}

// Register creates an account. It does not log the user in.
func (c *Client) Register(ctx context.Context, phone, password, referralCode string) (Result, error) {
	return c.postResult(ctx, PathRegister, "", registerRequest{
		Phone:        phone,
		Password:     password,
		ReferralCode: referralCode,
	})
}

// Login exchanges credentials for a bearer token and the user profile.
func (c *Client) Login(ctx context.Context, phone, password string) (Result, error) {
	return c.postResult(ctx, PathLogin, "", loginRequest{Phone: phone, Password: password})
}

// Logout tells the backend to revoke token. The response body is ignored.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, http.MethodPost, PathLogout, token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	return nil
}

// UserData fetches the profile for token. A 401 yields ErrUnauthorized.
func (c *Client) UserData(ctx context.Context, token string) (*UserProfile, error) {
	resp, err := c.do(ctx, http.MethodGet, PathUserData, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, transportErr(PathUserData, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Path: PathUserData, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var profile UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, transportErr(PathUserData, fmt.Errorf("decode response: %w", err))
	}
	return &profile, nil
}

// ChangePassword updates the password of the authenticated user.
func (c *Client) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) (Result, error) {
	return c.postResult(ctx, PathChangePassword, token, changePasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
}

// ForgotPassword asks the backend to start a password reset for phone.
func (c *Client) ForgotPassword(ctx context.Context, phone string) (Result, error) {
	return c.postResult(ctx, PathForgotPassword, "", forgotPasswordRequest{Phone: phone})
}

// Validate reports whether the backend still accepts token. Only the status
// code is inspected; 401 is returned as ErrUnauthorized.
func (c *Client) Validate(ctx context.Context, token string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, PathValidate, token, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode == http.StatusUnauthorized {
		return false, ErrUnauthorized
	}
	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

// StartTrade asks the backend to open an AI trade for the user.
func (c *Client) StartTrade(ctx context.Context, token string) (Result, error) {
	return c.postResult(ctx, PathStartTrade, token, struct{}{})
}

// postResult posts body as JSON and decodes the reply as a Result whatever
// the status code, so business rejections reach the caller verbatim. A 401
// on an authenticated call is reported as ErrUnauthorized.
func (c *Client) postResult(ctx context.Context, path, token string, body any) (Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, token, payload)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if token != "" && resp.StatusCode == http.StatusUnauthorized {
		return Result{}, ErrUnauthorized
	}

	var res Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&res); err != nil {
		return Result{}, transportErr(path, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err))
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(path, err)
	}
	return resp, nil
}

// IsUnauthorized reports whether err came from a 401 response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
