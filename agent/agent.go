package agent

import (
	"context"

	"github.com/mindweave/mindweave/core"
	"github.com/mindweave/mindweave/scenario"
)

// Entity is one extracted graph candidate. An empty ID is filled from the
// label before the entity reaches the graph store. IsUpdate flags a
// re-mention of an already known node.
type Entity struct {
	ID          string
	Label       string
	Type        string
	Description string
	Importance  int
	IsUpdate    bool
}

// Relationship is one extracted edge candidate.
type Relationship struct {
	Source string
	Target string
	Type   string
	Label  string
}

// Extraction is the full result of one extractor run.
type Extraction struct {
	Entities      []Entity
	Relationships []Relationship
}

// Correction types produced by the classifier.
const (
	CorrectionProductive = "productive"
	CorrectionClarifying = "clarifying"
	CorrectionRejecting  = "rejecting"
	CorrectionAgreement  = "agreement"
)

// ParseCorrectionType coerces a raw classifier value onto the known set,
// defaulting to clarifying.
func ParseCorrectionType(s string) string {
	switch s {
	case CorrectionProductive, CorrectionClarifying, CorrectionRejecting, CorrectionAgreement:
		return s
	default:
		return CorrectionClarifying
	}
}

// Correction is the classified relationship between the user's latest text
// and the prior reply.
type Correction struct {
	CorrectionType     string
	NewMemoryUnlocked  bool
	ReflectionNote     string
	UpdatedProfileNote string
}

// IsCorrection reports whether the classification is an actual correction as
// opposed to plain agreement.
func (c *Correction) IsCorrection() bool {
	return c != nil && c.CorrectionType != CorrectionAgreement
}

// SafetyVerdict is the safety gate's judgment of a proposed reply.
type SafetyVerdict struct {
	Approved       bool
	CrisisDetected bool
	Reason         string
	ModifiedReply  string
}

// Intensity labels how forcefully the user is engaging a part.
type Intensity string

const (
	IntensityGentle   Intensity = "gentle"
	IntensityModerate Intensity = "moderate"
	IntensityFirm     Intensity = "firm"
	IntensityIntense  Intensity = "intense"
)

// ParseIntensity coerces a raw label onto the intensity scale, mapping the
// legacy labels direct and challenging onto firm and intense, and anything
// else onto moderate.
func ParseIntensity(s string) Intensity {
	switch Intensity(s) {
	case IntensityGentle, IntensityModerate, IntensityFirm, IntensityIntense:
		return Intensity(s)
	}
	switch s {
	case "direct":
		return IntensityFirm
	case "challenging":
		return IntensityIntense
	default:
		return IntensityModerate
	}
}

// Value maps the intensity label onto its scalar weight.
func (i Intensity) Value() float64 {
	switch i {
	case IntensityGentle:
		return 0.2
	case IntensityModerate:
		return 0.5
	case IntensityFirm:
		return 0.7
	case IntensityIntense:
		return 0.9
	default:
		return 0.5
	}
}

// ProbeAnalysis is the router's reading of which parts the user addressed
// and how.
type ProbeAnalysis struct {
	AddressedTargets []string
	Technique        string
	Intensity        Intensity
	Summary          string
}

// PartReply is one in-character response from a scenario part.
type PartReply struct {
	Target  string
	Name    string
	Content string
	Color   string
}

// MilestoneResult is the detector's judgment of a single candidate
// milestone.
type MilestoneResult struct {
	Triggered bool
	Reasoning string
}

// Extractor pulls graph entities and relationships out of one user
// utterance.
type Extractor interface {
	Extract(ctx context.Context, text, graphContext, existingNodes string) (Extraction, error)
}

// CorrectionClassifier judges how the user's latest text relates to the
// prior reply. A nil Correction with nil error means nothing to classify.
type CorrectionClassifier interface {
	Classify(ctx context.Context, userText, priorReply, history, profile string) (*Correction, error)
}

// ReplyGenerator produces the companion-mode reply conditioned on graph
// state, conversation history, and the preference profile.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, userText, graphSummary, history, profile string) (string, error)
}

// SafetyGate reviews a proposed reply before delivery. Its verdict gates the
// delivered text even when evaluated off the critical path.
type SafetyGate interface {
	Review(ctx context.Context, proposedReply, userText, history string) (SafetyVerdict, error)
}

// ProbeRouter decides which scenario parts the user's text addresses and how
// forcefully.
type ProbeRouter interface {
	RouteProbe(ctx context.Context, text string, knownTargets []string, history string) (ProbeAnalysis, error)
}

// MultiResponder speaks as one scenario part. The orchestrator fans out one
// call per routed target; a failing target is dropped while the others still
// deliver.
type MultiResponder interface {
	RespondAs(ctx context.Context, part scenario.Part, modifiers []string, text, history, graphState string, routing ProbeAnalysis) (PartReply, error)
}

// MilestoneDetector evaluates whether a single candidate milestone's
// condition has been met. It is only ever asked about the first untriggered
// milestone in script order.
type MilestoneDetector interface {
	Detect(ctx context.Context, m scenario.Milestone, history, latestProbe, latestResponses string) (MilestoneResult, error)
}

// NodeAnswerer answers a direct question about a single graph node.
type NodeAnswerer interface {
	AnswerNodeQuery(ctx context.Context, node core.Node, question, history string) (string, error)
}
