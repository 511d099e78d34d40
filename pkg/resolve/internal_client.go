package resolve

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrUnauthorized is the terminal error for 401/403 from the internal
// resolver: a misconfigured shared secret, not a flaky backend.
var ErrUnauthorized = errors.New("internal resolver rejected credentials")

// InternalClient talks to the canonical remote resolver endpoint. Responses:
// 200 {uuid}, 404 authoritative miss, 401/403 terminal, anything else (and
// timeouts) retryable.
type InternalClient struct {
	BaseURL string
	Secret  string
	Timeout time.Duration
	client  *http.Client
}

func NewInternalClient(baseURL, secret string, timeout time.Duration) *InternalClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &InternalClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Secret:  secret,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a base URL is set. When false the orchestrator
// skips the internal branch entirely.
func (c *InternalClient) Configured() bool {
	return c != nil && strings.TrimSpace(c.BaseURL) != ""
}

type internalResponse struct {
	UUID string `json:"uuid"`
}

// Resolve asks the internal endpoint for raw. ("", nil) is an authoritative
// miss.
func (c *InternalClient) Resolve(ctx context.Context, raw string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	endpoint := c.BaseURL + "/resolve?raw=" + url.QueryEscape(raw)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "internal resolver: build request")
	}
	if c.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.Secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "internal resolver: request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		var out internalResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
			return "", errors.Wrap(err, "internal resolver: decode response")
		}
		if out.UUID == "" {
			return "", nil
		}
		return strings.ToLower(out.UUID), nil
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", Terminal(errors.Wrapf(ErrUnauthorized, "status %d", resp.StatusCode))
	default:
		return "", errors.Errorf("internal resolver: status %d", resp.StatusCode)
	}
}
