// Package twikey is the client for the Twikey mandate-and-invoicing API.
// It owns the session token lifecycle, signs and dispatches HTTP calls with
// a bounded timeout, and maps vendor and transport failures to RemoteError.
package twikey

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

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/logging"
)

const (
	// Every call is bounded; a non-responding remote never hangs the caller.
	requestTimeout = 15 * time.Second

	// Session tokens are valid for 24h remotely; refresh a little earlier.
	tokenValidity = 23 * time.Hour

	headerAPIError   = "ApiErrorCode"
	headerFeedTypes  = "X-TYPES"
	headerFeedCursor = "X-LAST"
	headerFeedResume = "X-RESUME-AFTER"
)

// Config carries the read-only settings the client needs. The enable flag,
// key material and merchant identity live in the service configuration and
// are injected here at construction, never read ambiently.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.twikey.com/creditor"
	// (beta host for sandbox accounts).
	BaseURL string

	// AppURL is the hosted-pages root used to build customer-facing URLs,
	// e.g. "https://app.twikey.com".
	AppURL string

	APIKey     string
	MerchantID string
}

// Client authenticates, signs and dispatches calls to the remote service.
// The session (token and expiry) is shared mutable state guarded by a mutex
// so concurrent callers never issue redundant or conflicting refreshes.
type Client struct {
	cfg Config
	hc  *http.Client
	log logging.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time

	Document *DocumentService
	Invoice  *InvoiceService
}

// NewClient builds a Client from the given configuration. It fails with
// common.ErrNotConfigured when no API key is set.
func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", common.ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: missing base URL", common.ErrNotConfigured)
	}
	c := &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: requestTimeout},
		log: log.With("module", "twikey"),
	}
	c.Document = &DocumentService{c: c}
	c.Invoice = &InvoiceService{c: c}
	return c, nil
}

func (c *Client) instanceURL(path string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + path
}

// refreshTokenIfRequired makes sure the session token is valid, logging in
// with the API key when it is missing or expired. It returns the token to
// use. Refresh failures surface as RemoteError with operation "auth".
func (c *Client) refreshTokenIfRequired(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiry) {
		return c.token, nil
	}

	form := url.Values{"apiToken": {c.cfg.APIKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.instanceURL(""), strings.NewReader(form.Encode()))
	if err != nil {
		return "", requestError("auth", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", requestError("auth", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get(headerAPIError) != "" || resp.StatusCode >= 400 {
		return "", remoteError("auth", resp)
	}

	token := resp.Header.Get("Authorization")
	if token == "" {
		var body struct {
			Authorization string `json:"Authorization"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			token = body.Authorization
		}
	}
	if token == "" {
		return "", &RemoteError{Op: "auth", StatusCode: resp.StatusCode, Message: "no authorization token in response"}
	}

	c.token = token
	c.expiry = time.Now().Add(tokenValidity)
	c.log.Debug(ctx, "session token refreshed")
	return c.token, nil
}

// invalidateToken drops the cached session token so the next call logs in
// again. Called on 401-class responses.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// call dispatches one authenticated request. Vendor errors (ApiErrorCode
// header) and network failures are mapped to RemoteError; on success the
// raw response is returned with its body still open.
func (c *Client) call(ctx context.Context, op, method, path string, body io.Reader, contentType string, extra http.Header) (*http.Response, error) {
	token, err := c.refreshTokenIfRequired(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.instanceURL(path), body)
	if err != nil {
		return nil, requestError(op, err)
	}
	req.Header.Set("Authorization", token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, requestError(op, err)
	}

	if resp.Header.Get(headerAPIError) != "" || resp.StatusCode >= 400 {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized {
			c.invalidateToken()
		}
		return nil, remoteError(op, resp)
	}

	return resp, nil
}

// postForm sends a form-encoded POST and decodes the JSON response into out
// (out may be nil when the caller only needs success/failure).
func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, out any) error {
	resp, err := c.call(ctx, op, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return requestError(op, fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

// postJSON sends a JSON POST and decodes the JSON response into out.
func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return requestError(op, err)
	}
	resp, err := c.call(ctx, op, http.MethodPost, path, strings.NewReader(string(data)), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return requestError(op, fmt.Errorf("malformed response: %w", err))
	}
	return nil
}
