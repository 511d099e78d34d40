package resolve

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const probeBodyLimit = 256 * 1024

var metaRefreshPattern = regexp.MustCompile(`(?i)<meta[^>]+http-equiv=["']?refresh["']?[^>]*content=["'][^"']*url=([^"'>\s]+)`)
var scriptLocationPattern = regexp.MustCompile(`(?i)(?:window\.|document\.)?location(?:\.href)?\s*=\s*["']([^"']+)["']`)

// RedirectProber asks the legacy redirect endpoint where an identifier lands
// and scrapes a UUID out of the answer. It is strictly best-effort: any
// failure, timeout included, reads as a miss.
type RedirectProber struct {
	BaseURL string
	Timeout time.Duration
	client  *http.Client
}

var _ Prober = &RedirectProber{}

func NewRedirectProber(baseURL string, timeout time.Duration) *RedirectProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedirectProber{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Manual redirect handling: the Location header is the data.
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe requests <base>/<raw> and hunts for a UUID in, in order: the
// Location header, meta-refresh or script navigation targets in the body,
// then any raw UUID substring of the body.
func (p *RedirectProber) Probe(ctx context.Context, raw string) (string, bool) {
	if p.BaseURL == "" {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	target := p.BaseURL + "/" + url.PathEscape(strings.TrimSpace(raw))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("raw", raw).Msg("redirect probe failed")
		return "", false
	}
	defer func() { _ = resp.Body.Close() }()

	if loc := resp.Header.Get("Location"); loc != "" {
		if u := embeddedUUIDPattern.FindString(loc); u != "" {
			return u, true
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		return "", false
	}
	html := string(body)

	if m := metaRefreshPattern.FindStringSubmatch(html); len(m) == 2 {
		if u := embeddedUUIDPattern.FindString(m[1]); u != "" {
			return u, true
		}
	}
	if m := scriptLocationPattern.FindStringSubmatch(html); len(m) == 2 {
		if u := embeddedUUIDPattern.FindString(m[1]); u != "" {
			return u, true
		}
	}
	if u := embeddedUUIDPattern.FindString(html); u != "" {
		return u, true
	}
	return "", false
}
