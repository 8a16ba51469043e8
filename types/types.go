package types

import "context"

// DocumentSnapshot is an immutable view of one document at a version.
type DocumentSnapshot struct {
	URI          string
	Version      int
	Text         string
	CursorLine   int // 0-indexed
	CursorCol    int // 0-indexed byte column
	CursorOffset int // byte offset of the cursor in Text
}

// ContentChange is one contiguous replacement, expressed against the text
// as it was before the change.
type ContentChange struct {
	RangeOffset int    // start offset of the replaced span
	RangeLength int    // length of the replaced span (0 = pure insertion)
	Text        string // replacement text (empty = pure deletion)
}

// End returns the exclusive end offset of the replaced span.
func (c ContentChange) End() int { return c.RangeOffset + c.RangeLength }

// Delta returns the signed document length change the edit causes.
func (c ContentChange) Delta() int { return len(c.Text) - c.RangeLength }

// TrackedOffsets is a [Start, End) span kept valid across edits. Start <= End
// always holds after transformation.
type TrackedOffsets struct {
	Start int
	End   int
}

// Candidate is one proposed edit: replace [StartIndex, EndIndex) with
// Completion. Offsets are byte indices into the document the candidate was
// produced for.
type Candidate struct {
	ID         string
	StartIndex int
	EndIndex   int
	Completion string
	Confidence float64
}

// Delta returns the signed length change applying the candidate causes.
func (c *Candidate) Delta() int { return len(c.Completion) - (c.EndIndex - c.StartIndex) }

// Decision says how a candidate should be presented.
type Decision int

const (
	DecisionInline Decision = iota
	DecisionJump
	DecisionSuppress
)

func (d Decision) String() string {
	switch d {
	case DecisionInline:
		return "inline"
	case DecisionJump:
		return "jump"
	case DecisionSuppress:
		return "suppress"
	}
	return "unknown"
}

// Classification pairs a display decision with the rule that produced it.
type Classification struct {
	Decision Decision
	Reason   string
}

// Snippet is one retrieval context chunk taken from a file.
type Snippet struct {
	FilePath  string
	StartLine int // 1-indexed
	EndLine   int // 1-indexed, inclusive
	Content   string
	Timestamp uint64 // unix millis of the source event, 0 if unknown
}

// PatchEntry is one formatted patch of a recent edit, oldest first in any
// slice carrying several.
type PatchEntry struct {
	Path  string
	Patch string
}

// SuggestionRequest carries everything a provider needs to produce
// candidates for one document state.
type SuggestionRequest struct {
	WorkspacePath string
	Snapshot      *DocumentSnapshot
	// PreviousText is the document text as of the previous request for the
	// same file, "" when unknown.
	PreviousText  string
	RecentPatches []PatchEntry
	Retrieval     []Snippet
}

// SuggestionResponse holds candidates in service order. Order matters:
// presentation picks the first viable candidate.
type SuggestionResponse struct {
	Candidates []*Candidate
}

// Provider is implemented by all suggestion backends.
type Provider interface {
	// GetSuggestions returns candidate edits for the request. An empty
	// response means no suggestion; errors degrade to the same.
	GetSuggestions(ctx context.Context, req *SuggestionRequest) (*SuggestionResponse, error)
}

// VisualGroup represents consecutive changed lines for UI alignment in the
// jump preview. Marshaled to the editor side as-is.
type VisualGroup struct {
	Type      string   `json:"type"` // "modification", "addition" or "deletion"
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine"`
	Lines     []string `json:"lines"`    // new content
	OldLines  []string `json:"oldLines"` // old content (for modifications)
}

// ProviderType selects the suggestion backend.
type ProviderType string

const (
	ProviderTypeHosted ProviderType = "hosted"
	ProviderTypeInline ProviderType = "inline"
	ProviderTypeFim    ProviderType = "fim"
	ProviderTypeZeta   ProviderType = "zeta"
)

// ProviderConfig holds configuration shared by providers.
type ProviderConfig struct {
	MaxTokens int // prompt token budget for content trimming (0 = no limit)
	// Generic backend configuration (inline, fim, zeta and local hosted).
	ProviderURL         string
	ProviderModel       string
	ProviderTemperature float64
	ProviderMaxTokens   int // max tokens to generate
	ProviderTopK        int
	CompletionPath      string // completion endpoint path, "" for the default
	// Hosted service credentials. APIKeyEnv names an environment variable
	// consulted when APIKey is empty.
	APIKey    string
	APIKeyEnv string
}
