package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	identity "github.com/fixcampus/go-identity"
)

// DefaultRequestTimeout bounds every API call. Slow campus networks are
// common; anything past this reads as "offline" rather than "still loading".
const DefaultRequestTimeout = 30 * time.Second

// ErrNetworkTimeout is surfaced when the server cannot be reached in time.
// The session state is left untouched; the caller decides whether to retry.
var ErrNetworkTimeout = goerrors.New("request timed out, check your connection", goerrors.CategoryOperation).
	WithTextCode("NETWORK_TIMEOUT")

// AuthResult is a token plus the principal it belongs to.
type AuthResult struct {
	Token     string
	Principal *identity.User
}

// APIClient talks to the identity server's JSON endpoints.
type APIClient struct {
	baseURL string
	http    *http.Client
	logger  identity.Logger
}

// APIOption configures the client.
type APIOption func(*APIClient)

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) APIOption {
	return func(c *APIClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithAPILogger overrides the logger.
func WithAPILogger(logger identity.Logger) APIOption {
	return func(c *APIClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewAPIClient points the client at the identity server base URL.
func NewAPIClient(baseURL string, opts ...APIOption) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultRequestTimeout},
		logger:  identity.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Login exchanges credentials for a token and principal.
func (c *APIClient) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var data struct {
		Token string         `json:"token"`
		User  *identity.User `json:"user"`
	}

	err := c.post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "", &data)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Token: data.Token, Principal: data.User}, nil
}

// SendOTP starts registration: the server validates the details and mails a
// code. Returns the challenge expiry.
func (c *APIClient) SendOTP(ctx context.Context, msg identity.RegisterUserMessage, confirmPassword string) (time.Time, error) {
	var data struct {
		ExpiresAt time.Time `json:"expires_at"`
	}

	err := c.post(ctx, "/auth/send-otp", map[string]any{
		"name":             msg.Name,
		"email":            msg.Email,
		"password":         msg.Password,
		"confirm_password": confirmPassword,
		"role":             msg.Role,
		"department":       msg.Department,
	}, "", &data)
	if err != nil {
		return time.Time{}, err
	}

	return data.ExpiresAt, nil
}

// ResendOTP re-issues the pending code, invalidating the previous one.
func (c *APIClient) ResendOTP(ctx context.Context, email, name string) (time.Time, error) {
	var data struct {
		ExpiresAt time.Time `json:"expires_at"`
	}

	err := c.post(ctx, "/auth/resend-otp", map[string]string{
		"email": email,
		"name":  name,
	}, "", &data)
	if err != nil {
		return time.Time{}, err
	}

	return data.ExpiresAt, nil
}

// VerifyOTP completes registration and logs the new account in.
func (c *APIClient) VerifyOTP(ctx context.Context, msg identity.RegisterUserMessage, code string) (*AuthResult, error) {
	var data struct {
		Token string         `json:"token"`
		User  *identity.User `json:"user"`
	}

	err := c.post(ctx, "/auth/verify-otp", map[string]any{
		"email":      msg.Email,
		"code":       code,
		"name":       msg.Name,
		"password":   msg.Password,
		"role":       msg.Role,
		"department": msg.Department,
		"categories": msg.Categories,
	}, "", &data)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Token: data.Token, Principal: data.User}, nil
}

// Me fetches the principal behind the token.
func (c *APIClient) Me(ctx context.Context, token string) (*identity.User, error) {
	var data struct {
		User *identity.User `json:"user"`
	}

	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, token, &data); err != nil {
		return nil, err
	}

	return data.User, nil
}

// UpdateProfile applies a partial profile update for the token's principal.
func (c *APIClient) UpdateProfile(ctx context.Context, token string, patch identity.ProfilePatch) (*identity.User, error) {
	var data struct {
		User *identity.User `json:"user"`
	}

	if err := c.do(ctx, http.MethodPut, "/auth/profile", patch, token, &data); err != nil {
		return nil, err
	}

	return data.User, nil
}

func (c *APIClient) post(ctx context.Context, path string, body any, token string, out any) error {
	return c.do(ctx, http.MethodPost, path, body, token, out)
}

// envelope mirrors the server response shape.
type envelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	TextCode string          `json:"text_code"`
	Data     json.RawMessage `json:"data"`
}

func (c *APIClient) do(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return ErrNetworkTimeout
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "request failed")
	}
	defer resp.Body.Close()

	env := envelope{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode response").
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return apiError(resp.StatusCode, env)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode response data")
		}
	}

	return nil
}

// apiError reconstructs a rich error from the wire shape so callers can
// branch on text codes the same way server-side code does.
func apiError(status int, env envelope) error {
	message := env.Message
	if message == "" {
		message = http.StatusText(status)
	}

	return goerrors.New(message, categoryFromStatus(status)).
		WithTextCode(env.TextCode).
		WithCode(status)
}

func categoryFromStatus(status int) goerrors.Category {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return goerrors.CategoryAuth
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusConflict:
		return goerrors.CategoryConflict
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case status >= 400 && status < 500:
		return goerrors.CategoryValidation
	default:
		return goerrors.CategoryOperation
	}
}

func isTimeout(err error) bool {
	if goerrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if goerrors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
