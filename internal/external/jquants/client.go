package jquants

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/pkg/config"
	"github.com/wonny/kabu/pkg/httputil"
	"github.com/wonny/kabu/pkg/logger"
)

// idTokenTTL is kept under the vendor's 24h validity
const idTokenTTL = 23 * time.Hour

// Client handles communication with the J-Quants API
// ⭐ SSOT: J-Quants calls are made from this client only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string

	mail     string
	password string

	mu           sync.Mutex
	refreshToken string
	idToken      string
	idTokenAt    time.Time
	now          func() time.Time
}

// NewClient creates a J-Quants client. httpClient carries retry and rate limiting.
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient:   httpClient,
		logger:       log,
		baseURL:      strings.TrimRight(cfg.JQuants.BaseURL, "/"),
		mail:         cfg.JQuants.MailAddress,
		password:     cfg.JQuants.Password,
		refreshToken: cfg.JQuants.RefreshToken,
		now:          time.Now,
	}
}

// Authenticate obtains a fresh id token, logging in with mail/password when no refresh token is known
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	if c.refreshToken == "" {
		if c.mail == "" || c.password == "" {
			return contracts.NewConfigurationError("jquants", "JQUANTS_REFRESH_TOKEN or JQUANTS_MAIL/JQUANTS_PASSWORD required")
		}
		var out struct {
			RefreshToken string `json:"refreshToken"`
		}
		body := map[string]string{"mailaddress": c.mail, "password": c.password}
		if err := c.post(ctx, "/token/auth_user", body, &out); err != nil {
			return fmt.Errorf("auth_user: %w", err)
		}
		if out.RefreshToken == "" {
			return fmt.Errorf("auth_user: %w: refreshToken missing", contracts.ErrUpstreamUnavailable)
		}
		c.refreshToken = out.RefreshToken
	}

	var out struct {
		IDToken string `json:"idToken"`
	}
	if err := c.post(ctx, "/token/auth_refresh", map[string]string{"refreshToken": c.refreshToken}, &out); err != nil {
		return fmt.Errorf("auth_refresh: %w", err)
	}
	if out.IDToken == "" {
		return fmt.Errorf("auth_refresh: %w: idToken missing", contracts.ErrUpstreamUnavailable)
	}
	c.idToken = out.IDToken
	c.idTokenAt = c.now()

	c.logger.Debug("J-Quants id token refreshed")
	return nil
}

// token returns a valid id token, refreshing it when stale or when force is set
func (c *Client) token(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if force || c.idToken == "" || c.now().Sub(c.idTokenAt) > idTokenTTL {
		if err := c.authenticateLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.idToken, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrUpstreamUnavailable, err)
	}
	return decode(resp, path, out)
}

// get performs one authenticated GET. A 401 triggers a single token refresh and replay.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	for attempt := 0; attempt < 2; attempt++ {
		tok, err := c.token(ctx, attempt > 0)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, http.Header{"Authorization": {"Bearer " + tok}})
		if err != nil {
			return fmt.Errorf("%w: %v", contracts.ErrUpstreamUnavailable, err)
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.logger.WithField("path", path).Warn("J-Quants token rejected, re-authenticating")
			continue
		}
		return decode(resp, path, out)
	}
	return fmt.Errorf("%w: %s: unauthorized", contracts.ErrUpstreamUnavailable, path)
}

func decode(resp *http.Response, path string, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: status %d: %s", contracts.ErrUpstreamUnavailable, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// fetchAll follows pagination_key until the vendor stops returning one.
// An empty page or a repeated key ends the loop.
func (c *Client) fetchAll(ctx context.Context, path, key string, params url.Values) ([]json.RawMessage, error) {
	var all []json.RawMessage
	seen := make(map[string]bool)
	q := cloneValues(params)

	for page := 1; ; page++ {
		var body map[string]json.RawMessage
		if err := c.get(ctx, path, q, &body); err != nil {
			return nil, err
		}

		var rows []json.RawMessage
		if raw, ok := body[key]; ok {
			if err := json.Unmarshal(raw, &rows); err != nil {
				return nil, fmt.Errorf("failed to decode %s.%s: %w", path, key, err)
			}
		}
		if len(rows) == 0 {
			break
		}
		all = append(all, rows...)

		next := pageKey(body)
		if next == "" || seen[next] {
			break
		}
		seen[next] = true

		q = cloneValues(params)
		q.Set("pagination_key", next)

		c.logger.WithFields(map[string]interface{}{
			"path": path,
			"page": page + 1,
			"rows": len(all),
		}).Debug("Fetching next page")
	}

	return all, nil
}

// pageKey reads pagination_key, falling back to the older page_key alias
func pageKey(body map[string]json.RawMessage) string {
	for _, k := range []string{"pagination_key", "page_key"} {
		raw, ok := body[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
