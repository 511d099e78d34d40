package gateway

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("encode json response")
	}
}

// locationAllowed is the open-redirect guard: a computed Location is honored
// only when root-relative or absolute on the configured target host.
func (g *Gateway) locationAllowed(loc string) bool {
	if loc == "" {
		return false
	}
	if strings.HasPrefix(loc, "/") && !strings.HasPrefix(loc, "//") {
		return true
	}
	parsed, err := url.Parse(loc)
	if err != nil {
		return false
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return false
	}
	return g.cfg.TargetHost != "" && strings.EqualFold(parsed.Host, g.cfg.TargetHost)
}

// redirect issues the final redirect, first routing through the in-app
// interstitial when the User-Agent calls for it, and refusing foreign hosts
// outright.
func (g *Gateway) redirect(w http.ResponseWriter, r *http.Request, location string, status int) {
	if !g.locationAllowed(location) {
		log.Warn().Str("location", location).Msg("refusing redirect off the target host")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}
	if isInAppBrowser(r.UserAgent()) {
		g.serveInterstitial(w, location)
		return
	}
	http.Redirect(w, r, location, status)
}
