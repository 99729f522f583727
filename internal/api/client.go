// Package api implements the JSON REST transport for the orchestration
// service. It owns bearer-token injection, error normalization, and the
// session-fatal handling of authentication rejections; everything above it
// works with decoded models and plain errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultTimeout is the transport-level request timeout. No operation
// defines a tighter contract; a timed-out request surfaces as an ordinary
// network error.
const DefaultTimeout = 30 * time.Second

// TokenSource supplies the bearer token attached to outgoing requests.
// It is read at send time, so a logout that races an in-flight request is
// benign: the server rejects the stale token and the 401 path below runs.
type TokenSource interface {
	Token() string
}

// Error is a server-rejected response normalized to its HTTP status and
// the server's error message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
}

// IsAuthError reports whether err is an authentication rejection.
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client talks to the orchestration REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource

	mu            sync.Mutex
	entropy       *rand.Rand
	onAuthFailure func()
}

// New creates a Client for the given base URL (e.g.
// "https://api.example.com/api"). tokens may be nil for a client that only
// makes unauthenticated calls.
func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnAuthFailure registers the hook invoked whenever any response comes
// back 401. The session manager uses it to clear credentials; the hook
// must be idempotent since concurrent requests can all trip it.
func (c *Client) OnAuthFailure(fn func()) {
	c.mu.Lock()
	c.onAuthFailure = fn
	c.mu.Unlock()
}

func (c *Client) requestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String()
}

// newRequest builds a request with the standard headers. An explicit
// bearer overrides the token source (used by the refresh call, which
// authenticates with the refresh token instead of the access token).
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, bearer string) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", c.requestID())

	if bearer == "" && c.tokens != nil {
		bearer = c.tokens.Token()
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req, nil
}

// do issues a JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.doBearer(ctx, method, path, query, body, out, "")
}

func (c *Client) doBearer(ctx context.Context, method, path string, query url.Values, body, out any, bearer string) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, query, rdr, bearer)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// send executes the request and normalizes the outcome: network failures
// are wrapped, non-2xx responses become *Error carrying the server's
// error string, and a 401 additionally fires the auth-failure hook.
func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.mu.Lock()
			hook := c.onAuthFailure
			c.mu.Unlock()
			if hook != nil {
				hook()
			}
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Path, err)
		}
	}
	return nil
}
