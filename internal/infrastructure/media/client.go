// Package media implements the downstream media-service client against
// the Emby-compatible HTTP API surface (Jellyfin and friends).
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

const (
	defaultTimeout = 15 * time.Second

	clientName    = "JellyConnect"
	clientVersion = "1.0"
)

// Client talks to a single downstream media server using a privileged API
// token. Per-user calls override the token per request.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: cfg.URL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateUser provisions a downstream account with the given credential.
// A name conflict maps to domain.ErrUsernameTaken so the caller can run
// its adoption fallback.
func (c *Client) CreateUser(ctx context.Context, username, password string) (*ports.DownstreamUser, error) {
	body := map[string]string{"Name": username, "Password": password}

	var user ports.DownstreamUser
	err := c.do(ctx, http.MethodPost, "/Users/New", nil, body, c.token, &user)
	if err != nil {
		var se *statusError
		if asStatus(err, &se) && (se.Code == http.StatusBadRequest || se.Code == http.StatusConflict) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, &domain.DownstreamUnavailable{Op: "CreateUser", Err: err}
	}
	return &user, nil
}

// GetUser reads one downstream account, including its current policy.
func (c *Client) GetUser(ctx context.Context, id string) (*ports.DownstreamUser, error) {
	var user ports.DownstreamUser
	err := c.do(ctx, http.MethodGet, "/Users/"+url.PathEscape(id), nil, nil, c.token, &user)
	if err != nil {
		var se *statusError
		if asStatus(err, &se) && se.Code == http.StatusNotFound {
			return nil, domain.ErrDownstreamUserNotFound
		}
		return nil, &domain.DownstreamUnavailable{Op: "GetUser", Err: err}
	}
	return &user, nil
}

// SetPolicy replaces the full policy of a downstream account. Callers are
// expected to read-merge-write; the endpoint overwrites whatever it is
// given.
func (c *Client) SetPolicy(ctx context.Context, id string, policy domain.Policy) error {
	path := "/Users/" + url.PathEscape(id) + "/Policy"
	err := c.do(ctx, http.MethodPost, path, nil, policy, c.token, nil)
	if err != nil {
		var se *statusError
		if asStatus(err, &se) && se.Code == http.StatusNotFound {
			return domain.ErrDownstreamUserNotFound
		}
		return &domain.DownstreamUnavailable{Op: "SetPolicy", Err: err}
	}
	return nil
}

// ListUsers returns every downstream account.
func (c *Client) ListUsers(ctx context.Context) ([]ports.DownstreamUser, error) {
	var users []ports.DownstreamUser
	if err := c.do(ctx, http.MethodGet, "/Users", nil, nil, c.token, &users); err != nil {
		return nil, &domain.DownstreamUnavailable{Op: "ListUsers", Err: err}
	}
	return users, nil
}

// AuthenticateByName performs a username/password login downstream and
// returns the per-user access token.
func (c *Client) AuthenticateByName(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"Username": username, "Pw": password}

	var resp struct {
		AccessToken string `json:"AccessToken"`
	}
	// Token-less call: the endpoint requires the client identity header
	// instead of an API token.
	err := c.do(ctx, http.MethodPost, "/Users/AuthenticateByName", nil, body, "", &resp)
	if err != nil {
		var se *statusError
		if asStatus(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
			return "", fmt.Errorf("authenticate %s: invalid credentials", username)
		}
		return "", &domain.DownstreamUnavailable{Op: "AuthenticateByName", Err: err}
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("authenticate %s: empty access token", username)
	}
	return resp.AccessToken, nil
}

// ApproveCode authorizes a quick-connect pairing code. The AuthContext
// selects how the call is attributed:
//   - UserToken set: the call runs as that user;
//   - TargetUserID set: privileged token plus an explicit UserId parameter;
//   - UserHint set: privileged token, user id carried in the identity header;
//   - all empty: bare privileged token.
func (c *Client) ApproveCode(ctx context.Context, code string, auth ports.AuthContext) error {
	query := url.Values{"Code": []string{code}}
	token := c.token
	hint := ""

	switch {
	case auth.UserToken != "":
		token = auth.UserToken
	case auth.TargetUserID != "":
		query.Set("UserId", auth.TargetUserID)
	case auth.UserHint != "":
		hint = auth.UserHint
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/QuickConnect/Authorize", query, nil, token)
	if err != nil {
		return &domain.DownstreamUnavailable{Op: "ApproveCode", Err: err}
	}
	if hint != "" {
		req.Header.Set("X-Emby-Authorization", identityHeader(hint))
	}

	if err := c.send(req, nil); err != nil {
		var se *statusError
		if asStatus(err, &se) && se.Code == http.StatusNotFound {
			return fmt.Errorf("approve code: unknown or expired code")
		}
		return &domain.DownstreamUnavailable{Op: "ApproveCode", Err: err}
	}
	return nil
}

// ── transport plumbing ────────────────────────────────────────────────────────

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("downstream returned %d: %s", e.Code, e.Body)
}

func asStatus(err error, target **statusError) bool {
	return errors.As(err, target)
}

func identityHeader(userHint string) string {
	h := fmt.Sprintf("MediaBrowser Client=%q, Device=%q, DeviceId=%q, Version=%q",
		clientName, clientName, clientName, clientVersion)
	if userHint != "" {
		h += fmt.Sprintf(", UserId=%q", userHint)
	}
	return h
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any, token string) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Emby-Token", token)
	} else {
		req.Header.Set("X-Emby-Authorization", identityHeader(""))
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, token string, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body, token)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(payload))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
