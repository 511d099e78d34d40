package linktoken

import (
	"context"
	"crypto/ed25519"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	// ErrNoSigningKey means no private key is configured; callers degrade to
	// a non-token link.
	ErrNoSigningKey = errors.New("no signing key configured")
	// ErrTokenExpired is returned for structurally valid tokens past exp.
	ErrTokenExpired = errors.New("link token expired")
	// ErrTokenInvalid covers malformed or tampered tokens.
	ErrTokenInvalid = errors.New("link token invalid")
)

// Claims is the payload of a signed link token. Tokens are short-lived and
// never persisted.
type Claims struct {
	Conversation string `json:"conversation"`
	LegacyID     int64  `json:"legacy_id,omitempty"`
	jwt.RegisteredClaims
}

// Signer mints EdDSA link tokens bound to a conversation UUID.
type Signer struct {
	key      ed25519.PrivateKey
	kid      string
	issuer   string
	audience string
}

func NewSigner(key ed25519.PrivateKey, kid, issuer, audience string) *Signer {
	return &Signer{key: key, kid: kid, issuer: issuer, audience: audience}
}

// Configured reports whether a private key is present.
func (s *Signer) Configured() bool {
	return s != nil && len(s.key) > 0
}

// Sign issues a token for conversationUUID valid for ttl. legacyID, when
// known, is embedded so the verify-failure path can degrade to a legacy
// redirect.
func (s *Signer) Sign(conversationUUID string, legacyID int64, ttl time.Duration) (string, error) {
	if !s.Configured() {
		return "", ErrNoSigningKey
	}
	if strings.TrimSpace(conversationUUID) == "" {
		return "", errors.New("sign: empty conversation uuid")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	now := time.Now()
	claims := Claims{
		Conversation: strings.ToLower(conversationUUID),
		LegacyID:     legacyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if s.kid != "" {
		token.Header["kid"] = s.kid
	}
	signed, err := token.SignedString(s.key)
	return signed, errors.Wrap(err, "sign link token")
}

// Verifier checks link tokens against the cached key set.
type Verifier struct {
	keys     *KeySet
	issuer   string
	audience string
}

func NewVerifier(keys *KeySet, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience}
}

// Verify parses and validates token, distinguishing expiry from tampering.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, errors.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		key, ok := v.keys.Lookup(ctx, kid)
		if !ok {
			return nil, errors.Errorf("no verification key for kid %q", kid)
		}
		return key, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(ErrTokenExpired, err.Error())
		}
		return nil, errors.Wrap(ErrTokenInvalid, err.Error())
	}
	if !parsed.Valid || claims.Conversation == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// DecodeUnverified extracts claims without checking the signature. Only the
// degraded redirect path uses this, to recover a legacy id from a token that
// failed verification; its output must never be treated as authenticated.
func DecodeUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	_, _, err := parser.ParseUnverified(token, claims)
	if err != nil {
		return nil, errors.Wrap(ErrTokenInvalid, err.Error())
	}
	return claims, nil
}
