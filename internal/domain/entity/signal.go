package entity

import (
	"strings"
	"time"
)

// NodeType discriminates the five signal variants. One Neo4j label per
// variant; polymorphic operations (reap, dedup, refresh) switch on this tag
// the way source handling switches on entity.Source's Strategy.
type NodeType string

const (
	NodeTypeGathering NodeType = "Gathering"
	NodeTypeAid       NodeType = "Aid"
	NodeTypeNeed      NodeType = "Need"
	NodeTypeNotice    NodeType = "Notice"
	NodeTypeTension   NodeType = "Tension"
)

// Valid reports whether t is one of the five recognized signal labels.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeGathering, NodeTypeAid, NodeTypeNeed, NodeTypeNotice, NodeTypeTension:
		return true
	}
	return false
}

// Sensitivity classifies how publicly a signal may be surfaced.
type Sensitivity string

const (
	SensitivityGeneral   Sensitivity = "general"
	SensitivityElevated  Sensitivity = "elevated"
	SensitivitySensitive Sensitivity = "sensitive"
)

// GeoPoint is a lat/lng pair. Zero value is not a valid location; use
// *GeoPoint for optional locations throughout the domain.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// NodeMeta carries the fields common to every signal variant (SPEC_FULL.md §3).
type NodeMeta struct {
	// ID is assigned its real graph ID by GraphStore.CreateNode. Before
	// storage it carries the extractor's provisional temp_id, so the
	// aggregate applier can key
	// ExtractionResult's ResourceTags/SignalTags/AuthorActors maps back to
	// this node after dedup-ladder dispatch.
	ID                 string
	Title              string // lowercased, normalized
	Summary            string
	Sensitivity        Sensitivity
	Confidence         float64
	CorroborationCount int
	SourceDiversity    int
	ExternalRatio      float64
	AboutLocation      *GeoPoint
	AboutLocationName  string
	SourceURL          string
	ExtractedAt        time.Time
	ContentDate        *time.Time
	LastConfirmedActive time.Time
	ImpliedQueries     []string
	ChannelDiversity   int
	MentionedActors    []string
	AuthorActor        string

	ReviewStatus string // stamped "staged" by GraphStore.CreateNode
	CreatedBy    string
	ScoutRunID   string
}

// GatheringAttrs carries the Gathering-specific fields.
type GatheringAttrs struct {
	Category    string
	StartsAt    *time.Time
	EndsAt      *time.Time
	Organizer   string
	IsRecurring bool
}

// AidAttrs carries the Aid-specific fields.
type AidAttrs struct {
	Category string
	Capacity *int
}

// NeedAttrs carries the Need-specific fields.
type NeedAttrs struct {
	Urgency  string
	Category string
}

// NoticeAttrs carries the Notice-specific fields.
type NoticeAttrs struct {
	Category string
}

// TensionAttrs carries the Tension-specific fields.
type TensionAttrs struct {
	Severity string
	CauseHeat float64
}

// SignalNode is the polymorphic signal node. Exactly one of the variant
// pointers is non-nil, selected by Type — composition rather than an
// interface hierarchy, since there is no behavior to dispatch beyond the
// type tag itself.
type SignalNode struct {
	Type NodeType
	Meta NodeMeta

	Gathering *GatheringAttrs
	Aid       *AidAttrs
	Need      *NeedAttrs
	Notice    *NoticeAttrs
	Tension   *TensionAttrs
}

// Validate checks that the node's type tag matches its populated variant and
// that required NodeMeta fields are present.
func (n *SignalNode) Validate() error {
	if !n.Type.Valid() {
		return &ValidationError{Field: "type", Message: "must be one of Gathering, Aid, Need, Notice, Tension"}
	}
	if n.Meta.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if n.Meta.Confidence < 0 || n.Meta.Confidence > 1 {
		return &ValidationError{Field: "confidence", Message: "confidence must be in [0,1]"}
	}
	variants := 0
	if n.Gathering != nil {
		variants++
	}
	if n.Aid != nil {
		variants++
	}
	if n.Need != nil {
		variants++
	}
	if n.Notice != nil {
		variants++
	}
	if n.Tension != nil {
		variants++
	}
	if variants != 1 {
		return &ValidationError{Field: "variant", Message: "exactly one variant attribute struct must be set"}
	}
	switch n.Type {
	case NodeTypeGathering:
		if n.Gathering == nil {
			return &ValidationError{Field: "variant", Message: "Gathering attrs required for type Gathering"}
		}
	case NodeTypeAid:
		if n.Aid == nil {
			return &ValidationError{Field: "variant", Message: "Aid attrs required for type Aid"}
		}
	case NodeTypeNeed:
		if n.Need == nil {
			return &ValidationError{Field: "variant", Message: "Need attrs required for type Need"}
		}
	case NodeTypeNotice:
		if n.Notice == nil {
			return &ValidationError{Field: "variant", Message: "Notice attrs required for type Notice"}
		}
	case NodeTypeTension:
		if n.Tension == nil {
			return &ValidationError{Field: "variant", Message: "Tension attrs required for type Tension"}
		}
	}
	return nil
}

// NormalizeTitle lowercases and trims a title for dedup comparisons. Ported
// from the original's normalize_title — trim then lowercase, nothing fancier
// (no unicode folding, no punctuation stripping).
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
