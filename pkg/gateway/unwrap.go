package gateway

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
)

// Raw identifiers arrive wrapped in tracking links, redirect URLs and
// base64url path segments, sometimes URL-encoded more than once. unwrapRaw
// peels those layers off before classification. All loops are bounded; the
// worst outcome is returning the input unchanged.

const maxDecodeIterations = 3

// Query parameter names tracking/redirect wrappers hide the real target in.
var wrapperParams = []string{"url", "u", "redirect", "redirect_url", "target", "dest", "link"}

var base64urlShape = regexp.MustCompile(`^[A-Za-z0-9_-]{16,}$`)

func unwrapRaw(raw string) string {
	raw = strings.TrimSpace(raw)
	for i := 0; i < maxDecodeIterations; i++ {
		next := unwrapOnce(raw)
		if next == raw {
			return raw
		}
		raw = next
	}
	return raw
}

func unwrapOnce(raw string) string {
	// Resolve double-URL-encoding first: %2F, %3A and friends.
	if strings.Contains(raw, "%") {
		if decoded, err := url.QueryUnescape(raw); err == nil && decoded != raw {
			return strings.TrimSpace(decoded)
		}
	}

	// A full URL: prefer a known wrapper parameter, else the last path
	// segment.
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return raw
		}
		q := parsed.Query()
		for _, name := range wrapperParams {
			if v := strings.TrimSpace(q.Get(name)); v != "" {
				return v
			}
		}
		// The dashboard's own links carry the uuid as a query parameter.
		if v := strings.TrimSpace(q.Get("conversation")); v != "" {
			return v
		}
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if last := segments[len(segments)-1]; last != "" {
			return last
		}
		return raw
	}

	// Opaque base64url blobs sometimes wrap an identifier or URL.
	if base64urlShape.MatchString(raw) {
		if decoded, ok := decodeBase64url(raw); ok && looksLikeIdentifierCarrier(decoded) {
			return decoded
		}
	}

	return raw
}

func decodeBase64url(s string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.URLEncoding.DecodeString(s)
		if err != nil {
			return "", false
		}
	}
	for _, r := range string(b) {
		if r < 0x20 || r > 0x7e {
			return "", false
		}
	}
	return string(b), true
}

// looksLikeIdentifierCarrier filters base64 decodes down to plausible
// wrapped values so random opaque tokens are left alone.
func looksLikeIdentifierCarrier(s string) bool {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "/") {
		return true
	}
	if uuidShape.MatchString(s) {
		return true
	}
	if allDigits(s) {
		return true
	}
	return false
}

var uuidShape = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
