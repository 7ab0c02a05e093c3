package types

// Campaign represents a single marketing campaign from the backlog.
// Campaigns are read-only from the orchestrator's point of view: the
// campaign source owns them, we only consume the per-type targets.
type Campaign struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Targets map[string]int `json:"content_type_targets"`
}

// ContentOptions is the typed replacement for ad-hoc preference maps
// passed into generation. Recognized values are enumerated and
// validated at construction via validator tags.
type ContentOptions struct {
	Tone         string `json:"tone,omitempty" validate:"omitempty,oneof=playful deadpan earnest promotional"`
	Language     string `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
	MaxLength    int    `json:"max_length,omitempty" validate:"omitempty,min=16,max=10000"`
	Hashtags     bool   `json:"hashtags,omitempty"`
	CallToAction string `json:"call_to_action,omitempty" validate:"omitempty,max=120"`
}

// GenerationUnit is one pending piece of work: generate item number
// Sequence of ContentType for Campaign, attributed to Identity.
// Units are ephemeral; they are built by the loop, consumed by the
// scheduler and discarded after their outcome is recorded.
type GenerationUnit struct {
	Campaign    Campaign `json:"campaign"`
	ContentType string   `json:"content_type"`
	Sequence    int      `json:"sequence_index"`
	Identity    string   `json:"identity"`
}

// GenerationResult is the opaque payload returned by the generation
// pipeline for one unit. Only the error text of a failed call is ever
// inspected; the payload itself is passed through to verification.
type GenerationResult struct {
	ContentID string   `json:"content_id,omitempty"`
	MediaRefs []string `json:"media_refs"`
}

// ContentClass is the final classification of a generated unit: the
// highest verification stage it passed. Verification failures demote
// the class, they never fail the run.
type ContentClass int

const (
	ClassGenerated ContentClass = iota
	ClassPersisted
	ClassMediaVerified
	ClassApprovalRequested
	ClassApproved
	ClassFinalized
)

func (c ContentClass) String() string {
	switch c {
	case ClassGenerated:
		return "generated"
	case ClassPersisted:
		return "persisted"
	case ClassMediaVerified:
		return "media_verified"
	case ClassApprovalRequested:
		return "approval_requested"
	case ClassApproved:
		return "generated+approved"
	case ClassFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// UnitOutcome records what happened to a single GenerationUnit after
// it went through retry, generation and verification.
type UnitOutcome struct {
	Unit        GenerationUnit    `json:"unit"`
	OwnerID     string            `json:"owner_id,omitempty"`
	Result      *GenerationResult `json:"result,omitempty"`
	Class       ContentClass      `json:"-"`
	ClassName   string            `json:"class"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Retries     int               `json:"retries"`
	Recovered   bool              `json:"recovered_after_retry"`
	RateLimited bool              `json:"rate_limited"`
}
