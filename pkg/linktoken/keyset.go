package linktoken

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PublicKey is one verification key in the active set.
type PublicKey struct {
	Kid string
	Key ed25519.PublicKey
}

// KeySource supplies the current public keys. StaticKeySource serves inline
// configuration; JWKSKeySource pulls a remote JWKS document.
type KeySource interface {
	Fetch(ctx context.Context) ([]PublicKey, error)
}

// KeySet caches the active verification keys process-wide, refreshing from
// its source at most once per RefreshTTL. It is an advisory cache: a stale
// read during rotation is tolerated, last writer wins.
type KeySet struct {
	source     KeySource
	refreshTTL time.Duration
	now        func() time.Time

	mu        sync.RWMutex
	keys      []PublicKey
	fetchedAt time.Time
}

func NewKeySet(source KeySource, refreshTTL time.Duration) *KeySet {
	if refreshTTL <= 0 {
		refreshTTL = 60 * time.Second
	}
	return &KeySet{source: source, refreshTTL: refreshTTL, now: time.Now}
}

// Keys returns the cached keys, refreshing when stale. Refresh failures keep
// serving the previous set.
func (ks *KeySet) Keys(ctx context.Context) []PublicKey {
	ks.mu.RLock()
	fresh := ks.now().Sub(ks.fetchedAt) < ks.refreshTTL && !ks.fetchedAt.IsZero()
	keys := ks.keys
	ks.mu.RUnlock()
	if fresh || ks.source == nil {
		return keys
	}

	next, err := ks.source.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("key set refresh failed, keeping previous keys")
		ks.mu.Lock()
		// Push the clock forward anyway so a dead source is not hammered on
		// every verification.
		ks.fetchedAt = ks.now()
		ks.mu.Unlock()
		return keys
	}

	ks.mu.Lock()
	ks.keys = next
	ks.fetchedAt = ks.now()
	ks.mu.Unlock()
	return next
}

// Lookup finds the key with the given kid. An empty kid matches a singleton
// set.
func (ks *KeySet) Lookup(ctx context.Context, kid string) (ed25519.PublicKey, bool) {
	keys := ks.Keys(ctx)
	if kid == "" && len(keys) == 1 {
		return keys[0].Key, true
	}
	for _, k := range keys {
		if k.Kid == kid {
			return k.Key, true
		}
	}
	return nil, false
}

// Reset drops the cache so the next read refetches. Test hook.
func (ks *KeySet) Reset() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.keys = nil
	ks.fetchedAt = time.Time{}
}

// SetClock swaps the time source. Test hook.
func (ks *KeySet) SetClock(now func() time.Time) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.now = now
}

// jwk is the wire shape of one Ed25519 JWKS entry.
type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	X   string `json:"x"`
	Use string `json:"use"`
	Alg string `json:"alg"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKS renders the active keys as a JWKS document. Empty when no keys are
// configured.
func (ks *KeySet) JWKS(ctx context.Context) ([]byte, int) {
	keys := ks.Keys(ctx)
	doc := jwks{Keys: []jwk{}}
	for _, k := range keys {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: k.Kid,
			X:   base64.RawURLEncoding.EncodeToString(k.Key),
			Use: "sig",
			Alg: "EdDSA",
		})
	}
	out, _ := json.Marshal(doc)
	return out, len(doc.Keys)
}

// StaticKeySource serves keys handed to it at construction time.
type StaticKeySource struct {
	keys []PublicKey
}

func NewStaticKeySource(keys ...PublicKey) *StaticKeySource {
	return &StaticKeySource{keys: keys}
}

func (s *StaticKeySource) Fetch(ctx context.Context) ([]PublicKey, error) {
	return s.keys, nil
}

// JWKSKeySource fetches an Ed25519 JWKS document over HTTP.
type JWKSKeySource struct {
	URL    string
	client *http.Client
}

func NewJWKSKeySource(url string, timeout time.Duration) *JWKSKeySource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &JWKSKeySource{URL: url, client: &http.Client{Timeout: timeout}}
}

func (s *JWKSKeySource) Fetch(ctx context.Context) ([]PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "jwks: build request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "jwks: fetch")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("jwks: status %d", resp.StatusCode)
	}

	var doc jwks
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "jwks: decode")
	}
	out := make([]PublicKey, 0, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "OKP" || k.Crv != "Ed25519" {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			log.Warn().Str("kid", k.Kid).Msg("skipping malformed jwks entry")
			continue
		}
		out = append(out, PublicKey{Kid: k.Kid, Key: ed25519.PublicKey(raw)})
	}
	return out, nil
}
