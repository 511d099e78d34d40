package gateway

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/boomhq/convlink/pkg/events"
	"github.com/boomhq/convlink/pkg/linktoken"
	"github.com/boomhq/convlink/pkg/resolve"
	"github.com/boomhq/convlink/pkg/store"
)

// Resolver is the resolution capability the gateway depends on. Satisfied by
// resolve.Orchestrator; tests inject stubs.
type Resolver interface {
	Resolve(ctx context.Context, raw string, payload any) *resolve.Result
}

// Config is the gateway's request-shaping surface.
type Config struct {
	// TargetHost is the only absolute-redirect destination the gateway will
	// ever emit (open-redirect protection).
	TargetHost string
	// DashboardPath is the canonical conversation deep-link path.
	DashboardPath string
	// LegacyPath is the degraded fallback path; the legacy id rides along as
	// a query parameter.
	LegacyPath string
	// TokenTTL bounds tokens minted by the link-building API.
	TokenTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.DashboardPath == "" {
		c.DashboardPath = "/dashboard"
	}
	if c.LegacyPath == "" {
		c.LegacyPath = "/inbox"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 15 * time.Minute
	}
	return c
}

// Gateway turns tokens and raw identifiers into canonical redirects. It is
// stateless across requests; every route terminates in a redirect, an
// interstitial, or a help page, never a 500 for a resolution failure.
type Gateway struct {
	resolver Resolver
	signer   *linktoken.Signer
	verifier *linktoken.Verifier
	keys     *linktoken.KeySet
	convs    store.ConversationStore
	audit    *events.Publisher
	cfg      Config
}

func New(resolver Resolver, signer *linktoken.Signer, verifier *linktoken.Verifier, keys *linktoken.KeySet, convs store.ConversationStore, audit *events.Publisher, cfg Config) *Gateway {
	return &Gateway{
		resolver: resolver,
		signer:   signer,
		verifier: verifier,
		keys:     keys,
		convs:    convs,
		audit:    audit,
		cfg:      cfg.withDefaults(),
	}
}

// Routes registers every gateway route on r. HEAD is registered alongside
// GET on each route: resolution and its cache side effects run identically,
// and net/http discards the body for HEAD responses.
func (g *Gateway) Routes(r *mux.Router) {
	// Raw identifiers can arrive with percent-encoded slashes (wrapped
	// URLs); match on the encoded path so they stay one segment.
	r.UseEncodedPath()

	r.HandleFunc("/u/{token}", g.handleToken).Methods("GET", "HEAD")
	r.HandleFunc("/r/t/{token}", g.handleToken).Methods("GET", "HEAD")
	r.HandleFunc("/go/c/{raw}", g.handleUniversal).Methods("GET", "HEAD")
	r.HandleFunc("/c/{raw}", g.handleRaw).Methods("GET", "HEAD")
	r.HandleFunc("/boom/open/conv/{raw}", g.handleRaw).Methods("GET", "HEAD")
	r.HandleFunc("/.well-known/jwks.json", g.handleJWKS).Methods("GET", "HEAD")
	r.HandleFunc("/api/resolve", g.handleAPIResolve).Methods("GET", "POST")
	r.HandleFunc("/api/link", g.handleAPILink).Methods("GET")
	r.HandleFunc("/healthz", g.handleHealthz).Methods("GET", "HEAD")
}

// canonicalLink builds the conversation deep link on the target host.
func (g *Gateway) canonicalLink(conversationUUID, workspace string) string {
	q := url.Values{}
	q.Set("conversation", conversationUUID)
	if workspace != "" {
		q.Set("workspace", workspace)
	}
	return g.absolute(g.cfg.DashboardPath + "?" + q.Encode())
}

// legacyLink builds the degraded fallback link for a legacy id.
func (g *Gateway) legacyLink(legacyID int64) string {
	q := url.Values{}
	q.Set("legacy", strconv.FormatInt(legacyID, 10))
	return g.absolute(g.cfg.LegacyPath + "?" + q.Encode())
}

func (g *Gateway) absolute(rootRelative string) string {
	if g.cfg.TargetHost == "" {
		return rootRelative
	}
	return "https://" + g.cfg.TargetHost + rootRelative
}

// workspaceFor mines the workspace slug for a resolved conversation. Best
// effort; lookup failures leave the link without a workspace hint.
func (g *Gateway) workspaceFor(ctx context.Context, conversationUUID string) string {
	if g.convs == nil {
		return ""
	}
	conv, err := g.convs.FindByUUID(ctx, conversationUUID)
	if err != nil {
		log.Debug().Err(err).Str("uuid", conversationUUID).Msg("workspace lookup failed")
		return ""
	}
	if conv == nil {
		return ""
	}
	return conv.Workspace
}

// legacyIDFor finds the legacy id of a resolved conversation, for embedding
// in tokens. Best effort.
func (g *Gateway) legacyIDFor(ctx context.Context, conversationUUID string) int64 {
	if g.convs == nil {
		return 0
	}
	conv, err := g.convs.FindByUUID(ctx, conversationUUID)
	if err != nil || conv == nil {
		return 0
	}
	return conv.LegacyID
}

func (g *Gateway) publish(ev events.ResolutionEvent) {
	g.audit.Publish(ev)
}
