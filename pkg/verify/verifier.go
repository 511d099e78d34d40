package verify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LinkVerifier probes a freshly built link before anyone mails it out.
// A link verifies when the endpoint answers 200 on the canonical dashboard
// path, or a 3xx whose Location points at a login page, the canonical path,
// or the universal token path. Everything else, timeouts included, fails
// verification; the caller degrades the link kind instead of propagating an
// error.
type LinkVerifier struct {
	DashboardPath string
	LoginPath     string
	TokenPath     string
	Timeout       time.Duration
	client        *http.Client
}

func NewLinkVerifier(dashboardPath, loginPath, tokenPath string, timeout time.Duration) *LinkVerifier {
	if dashboardPath == "" {
		dashboardPath = "/dashboard"
	}
	if loginPath == "" {
		loginPath = "/login"
	}
	if tokenPath == "" {
		tokenPath = "/r/t/"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LinkVerifier{
		DashboardPath: dashboardPath,
		LoginPath:     loginPath,
		TokenPath:     tokenPath,
		Timeout:       timeout,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Verify reports whether candidate is live.
func (v *LinkVerifier) Verify(ctx context.Context, candidate string) bool {
	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return false
	}
	resp, err := v.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", candidate).Msg("link verification request failed")
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return v.onPath(req.URL.Path, v.DashboardPath)
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := resp.Header.Get("Location")
		if loc == "" {
			return false
		}
		parsed, err := url.Parse(loc)
		if err != nil {
			return false
		}
		return v.onPath(parsed.Path, v.LoginPath) ||
			v.onPath(parsed.Path, v.DashboardPath) ||
			v.onPath(parsed.Path, v.TokenPath)
	default:
		return false
	}
}

func (v *LinkVerifier) onPath(path, prefix string) bool {
	return prefix != "" && strings.HasPrefix(path, prefix)
}
