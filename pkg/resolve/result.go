package resolve

// Source names the tier that produced a resolution.
type Source string

const (
	SourceDirect        Source = "direct"
	SourceAlias         Source = "alias"
	SourceStore         Source = "store"
	SourceInline        Source = "inline"
	SourceRedirectProbe Source = "redirect-probe"
	SourceInternal      Source = "internal"
	SourceMinted        Source = "minted"
)

// Result is the outcome of a successful resolution. Minted is true only when
// no authoritative tier matched and the UUID was derived deterministically.
type Result struct {
	UUID   string `json:"uuid"`
	Minted bool   `json:"minted"`
	Source Source `json:"source"`
}
