package identifier

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind discriminates the three external shapes a conversation identifier
// can arrive in.
type Kind string

const (
	KindUUID     Kind = "uuid"
	KindLegacyID Kind = "legacy_id"
	KindSlug     Kind = "slug"
)

// Identifier is the classified form of a raw conversation reference.
// Exactly one of UUID, LegacyID or Slug is meaningful, selected by Kind.
type Identifier struct {
	Kind     Kind
	UUID     string
	LegacyID int64
	Slug     string
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
var digitsPattern = regexp.MustCompile(`^[0-9]+$`)

// Classify turns a raw string into an Identifier. Classification is pure and
// total over nonempty trimmed input: a 36-char UUID shape wins, then
// all-digits becomes a legacy id, anything else is a slug. Empty or
// whitespace-only input returns false.
func Classify(raw string) (Identifier, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identifier{}, false
	}
	if uuidPattern.MatchString(raw) {
		return Identifier{Kind: KindUUID, UUID: strings.ToLower(raw)}, true
	}
	if digitsPattern.MatchString(raw) {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			return Identifier{Kind: KindLegacyID, LegacyID: n}, true
		}
		// Digit strings too long for int64 are still identifiers, just not
		// numeric ones we can index by.
		return Identifier{Kind: KindSlug, Slug: raw}, true
	}
	return Identifier{Kind: KindSlug, Slug: raw}, true
}

// IsUUID reports whether raw already has canonical UUID shape.
func IsUUID(raw string) bool {
	return uuidPattern.MatchString(strings.TrimSpace(raw))
}
