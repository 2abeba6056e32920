package core

import (
	"encoding/json"

	"github.com/tidwall/sjson"
)

// Event is the discriminated union streamed to observing clients. Concrete
// event types carry their payload fields directly; the wire discriminator is
// injected by MarshalEvent so payload structs stay free of bookkeeping.
//
// Delivery is per session and ordered. All event types are unicast to the
// originating observer except Breakthrough, which is multicast to every
// observer of the session.
type Event interface {
	EventType() string
}

// ScenarioPartInfo is the client-facing descriptor of one scenario part.
type ScenarioPartInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ScenarioInfo is the client-facing descriptor of a loaded scenario.
type ScenarioInfo struct {
	ID              string                      `json:"id"`
	Title           string                      `json:"title"`
	Tagline         string                      `json:"tagline"`
	CaseDescription string                      `json:"caseDescription"`
	Parts           map[string]ScenarioPartInfo `json:"parts,omitempty"`
}

// ScenarioLoaded is sent once when an observer attaches to a session.
type ScenarioLoaded struct {
	Scenario            ScenarioInfo `json:"scenario"`
	GraphData           Snapshot     `json:"graphData"`
	TriggeredMilestones []string     `json:"triggeredBreakthroughs"`
}

// EventType implements Event.
func (ScenarioLoaded) EventType() string { return "scenario_loaded" }

// AgentStatus brackets every collaborator invocation with a running/done
// pair. Done events carry the elapsed duration and a short summary; a caught
// failure produces a done event with a failure summary, never an exception.
type AgentStatus struct {
	Agent      string `json:"agent"`
	Status     string `json:"status"` // running or done
	Summary    string `json:"summary,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// EventType implements Event.
func (AgentStatus) EventType() string { return "agent_status" }

// GraphUpdate carries the full current snapshot plus the flattened field
// changes produced by the current turn.
type GraphUpdate struct {
	GraphData   Snapshot     `json:"graphData"`
	NodeChanges []NodeChange `json:"nodeChanges"`
}

// EventType implements Event.
func (GraphUpdate) EventType() string { return "graph_update" }

// PartResponse is one in-character reply from a scenario part.
type PartResponse struct {
	Part    string `json:"part"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Color   string `json:"color"`
}

// EventType implements Event.
func (PartResponse) EventType() string { return "part_response" }

// CorrectionDetected reports a classified user correction together with the
// graph deltas it coincided with.
type CorrectionDetected struct {
	CorrectionType  string       `json:"correctionType"`
	BeforeClaim     string       `json:"beforeClaim"`
	AfterInsight    string       `json:"afterInsight"`
	AffectedNodeIDs []string     `json:"affectedNodeIds"`
	FieldChanges    []NodeChange `json:"fieldChanges"`
}

// EventType implements Event.
func (CorrectionDetected) EventType() string { return "correction_detected" }

// Breakthrough announces a triggered milestone. It is the only multicast
// event: a milestone changes globally shared session meaning, so every
// observer receives the full diff and snapshot.
type Breakthrough struct {
	BreakthroughID string      `json:"breakthroughId"`
	Name           string      `json:"name"`
	InsightSummary string      `json:"insightSummary"`
	GraphDiff      RewriteDiff `json:"graphDiff"`
	FullSnapshot   Snapshot    `json:"fullSnapshot"`
}

// EventType implements Event.
func (Breakthrough) EventType() string { return "breakthrough" }

// VectorSnapshot carries the derived telemetry signals for scenario
// sessions.
type VectorSnapshot struct {
	Vectors map[string]float64 `json:"vectors"`
}

// EventType implements Event.
func (VectorSnapshot) EventType() string { return "vector_snapshot" }

// WarmthSignal reports progress toward the next milestone.
type WarmthSignal struct {
	Warmth             float64 `json:"warmth"`
	NextBreakthroughID string  `json:"nextBreakthroughId"`
}

// EventType implements Event.
func (WarmthSignal) EventType() string { return "warmth_signal" }

// NodeAnswer is the reply to a node_query message.
type NodeAnswer struct {
	NodeID string `json:"nodeId"`
	Answer string `json:"answer"`
}

// EventType implements Event.
func (NodeAnswer) EventType() string { return "node_answer" }

// ErrorEvent reports a rejected inbound message or other user-visible
// failure. No state is mutated before an ErrorEvent is emitted.
type ErrorEvent struct {
	Message string `json:"message"`
}

// EventType implements Event.
func (ErrorEvent) EventType() string { return "error" }

// MarshalEvent serializes an event payload and injects the wire
// discriminator under the "type" key.
func MarshalEvent(ev Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(raw, "type", ev.EventType())
}
