package gateway

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/boomhq/convlink/pkg/events"
	"github.com/boomhq/convlink/pkg/identifier"
	"github.com/boomhq/convlink/pkg/linktoken"
)

// handleToken serves /u/{token} and /r/t/{token}: verify, resolve, redirect.
// A failed verification degrades to an unverified decode for a legacy-id
// redirect, then to the help page. Never a 500.
func (g *Gateway) handleToken(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	claims, err := g.verifier.Verify(r.Context(), token)
	if err == nil {
		workspace := g.workspaceFor(r.Context(), claims.Conversation)
		g.publish(events.ResolutionEvent{
			Raw:    "token",
			UUID:   claims.Conversation,
			Source: "token",
			Route:  r.URL.Path,
		})
		g.redirect(w, r, g.canonicalLink(claims.Conversation, workspace), http.StatusSeeOther)
		return
	}

	if errors.Is(err, linktoken.ErrTokenExpired) {
		log.Debug().Msg("expired link token, attempting degraded redirect")
	} else {
		log.Debug().Err(err).Msg("link token failed verification")
	}

	// Degraded path: pull a legacy id out of the token without trusting it.
	if unverified, decErr := linktoken.DecodeUnverified(token); decErr == nil && unverified.LegacyID > 0 {
		g.publish(events.ResolutionEvent{
			Raw:    "token",
			Source: "token-degraded",
			Route:  r.URL.Path,
		})
		g.redirect(w, r, g.legacyLink(unverified.LegacyID), http.StatusFound)
		return
	}

	g.serveHelp(w)
}

// handleUniversal serves /go/c/{value}: the value may be a signed token or a
// raw identifier. Tokens have two dots; everything else goes down the raw
// path.
func (g *Gateway) handleUniversal(w http.ResponseWriter, r *http.Request) {
	value := mux.Vars(r)["raw"]
	if strings.Count(value, ".") == 2 {
		if _, err := linktoken.DecodeUnverified(value); err == nil {
			// Structurally a JWT: share the token handler so both routes get
			// the same degraded-redirect behavior.
			mux.Vars(r)["token"] = value
			g.handleToken(w, r)
			return
		}
	}
	g.handleRaw(w, r)
}

// handleRaw serves /c/{raw} and /boom/open/conv/{raw}: unwrap tracking
// wrappers, resolve, redirect; degrade to the legacy fallback or the help
// page.
func (g *Gateway) handleRaw(w http.ResponseWriter, r *http.Request) {
	raw := unwrapRaw(mux.Vars(r)["raw"])

	res := g.resolver.Resolve(r.Context(), raw, nil)
	if res != nil && res.UUID != "" {
		workspace := g.workspaceFor(r.Context(), res.UUID)
		g.publish(events.ResolutionEvent{
			Raw:    raw,
			UUID:   res.UUID,
			Source: string(res.Source),
			Minted: res.Minted,
			Route:  r.URL.Path,
		})
		g.redirect(w, r, g.canonicalLink(res.UUID, workspace), http.StatusSeeOther)
		return
	}

	g.publish(events.ResolutionEvent{Raw: raw, Route: r.URL.Path})

	if id, ok := identifier.Classify(raw); ok && id.Kind == identifier.KindLegacyID {
		g.redirect(w, r, g.legacyLink(id.LegacyID), http.StatusFound)
		return
	}
	g.serveHelp(w)
}

// handleJWKS publishes the active verification keys. An unconfigured key set
// is a 404 that must not be cached; a populated one may be cached briefly.
func (g *Gateway) handleJWKS(w http.ResponseWriter, r *http.Request) {
	doc, n := g.keys.JWKS(r.Context())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if n == 0 {
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusNotFound)
	} else {
		w.Header().Set("Cache-Control", "public, max-age=60")
		w.WriteHeader(http.StatusOK)
	}
	_, _ = w.Write(doc)
}

// handleAPIResolve is the resolve-by-query API: id | uuid | legacyId | slug
// | raw, first non-empty wins.
func (g *Gateway) handleAPIResolve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}
	var raw string
	for _, name := range []string{"id", "uuid", "legacyId", "slug", "raw"} {
		if v := strings.TrimSpace(r.Form.Get(name)); v != "" {
			raw = v
			break
		}
	}
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}

	res := g.resolver.Resolve(r.Context(), unwrapRaw(raw), nil)
	if res == nil || res.UUID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}
	g.publish(events.ResolutionEvent{
		Raw:    raw,
		UUID:   res.UUID,
		Source: string(res.Source),
		Minted: res.Minted,
		Route:  "/api/resolve",
	})
	writeJSON(w, http.StatusOK, res)
}

// handleAPILink builds the best shareable link for an identifier: a signed
// token link when a signing key is configured, the plain deep link
// otherwise.
func (g *Gateway) handleAPILink(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("raw"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}
	res := g.resolver.Resolve(r.Context(), unwrapRaw(raw), nil)
	if res == nil || res.UUID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}

	ttl := g.cfg.TokenTTL
	if v := r.URL.Query().Get("ttl"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}

	kind := "deep"
	link := g.canonicalLink(res.UUID, g.workspaceFor(r.Context(), res.UUID))
	if g.signer.Configured() {
		token, err := g.signer.Sign(res.UUID, g.legacyIDFor(r.Context(), res.UUID), ttl)
		if err == nil {
			kind = "token"
			link = g.absolute("/r/t/" + token)
		} else {
			// No signing key or a signing failure: the deep link built above
			// stands.
			log.Warn().Err(err).Msg("token signing failed, serving deep link")
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"link":   link,
		"kind":   kind,
		"uuid":   res.UUID,
		"minted": res.Minted,
	})
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
