package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mindweave/mindweave/core"
	"github.com/mindweave/mindweave/graph"
	"github.com/mindweave/mindweave/scenario"
)

// Session owns everything scoped to one session id: the graph store, the
// conversation log, the preference profile, and (in scenario mode) the
// triggered-milestone list and accumulated part voice modifiers. Sessions are
// created once per id and live for the process lifetime.
type Session struct {
	id       string
	graph    *graph.Store
	scenario *scenario.Scenario // nil in companion mode

	mu            sync.RWMutex
	conversation  []core.Utterance
	profile       Profile
	milestones    []string
	partModifiers map[string][]string
	lastReply     string

	// runMu serializes whole pipeline runs. Turn numbering and fuzzy
	// dedup are only meaningful between complete messages.
	runMu sync.Mutex
}

func newSession(id string, g *graph.Store, sc *scenario.Scenario) *Session {
	return &Session{
		id:            id,
		graph:         g,
		scenario:      sc,
		partModifiers: make(map[string][]string),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Graph returns the session's graph store.
func (s *Session) Graph() *graph.Store { return s.graph }

// Scenario returns the loaded scenario, or nil in companion mode.
func (s *Session) Scenario() *scenario.Scenario { return s.scenario }

// RunExclusive executes f while holding the session's pipeline lock, so runs
// for successive messages on the same session never interleave.
func (s *Session) RunExclusive(f func()) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	f()
}

// AppendUtterance adds one entry to the conversation log.
func (s *Session) AppendUtterance(u core.Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation = append(s.conversation, u)
}

// History returns a copy of the conversation log.
func (s *Session) History() []core.Utterance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Utterance, len(s.conversation))
	copy(out, s.conversation)
	return out
}

// FormatHistory renders up to the last max utterances as prompt input.
func (s *Session) FormatHistory(max int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.conversation
	if max > 0 && len(conv) > max {
		conv = conv[len(conv)-max:]
	}
	if len(conv) == 0 {
		return "(no conversation yet)"
	}

	var b strings.Builder
	for _, u := range conv {
		who := u.Role
		if u.Speaker != "" {
			who = u.Speaker
		}
		fmt.Fprintf(&b, "%s: %s\n", who, u.Content)
	}
	return b.String()
}

// LastReply returns the most recent delivered reply, empty before the first.
func (s *Session) LastReply() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReply
}

// SetLastReply records the reply delivered for the current message.
func (s *Session) SetLastReply(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReply = reply
}

// Profile returns a copy of the preference profile.
func (s *Session) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.copy()
}

// RecordCorrection applies a classified correction to the profile.
func (s *Session) RecordCorrection(turn int, correctionType, note, updatedSummary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.AppendCorrection(turn, correctionType, note, updatedSummary)
}

// TriggeredMilestones returns a copy of the triggered milestone ids, in
// trigger order.
func (s *Session) TriggeredMilestones() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.milestones))
	copy(out, s.milestones)
	return out
}

// MarkMilestone appends a milestone id to the triggered list. Idempotent:
// returns false if the id is already present, and the list never shrinks.
func (s *Session) MarkMilestone(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.milestones {
		if existing == id {
			return false
		}
	}
	s.milestones = append(s.milestones, id)
	return true
}

// AddPartModifiers accumulates milestone-supplied voice adjustments per part.
func (s *Session) AddPartModifiers(mods map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for partID, mod := range mods {
		s.partModifiers[partID] = append(s.partModifiers[partID], mod)
	}
}

// PartModifiers returns the accumulated voice adjustments for one part.
func (s *Session) PartModifiers(partID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.partModifiers[partID]))
	copy(out, s.partModifiers[partID])
	return out
}

// export is the serialized form shared by the JSON and Markdown exports.
type export struct {
	SessionID    string           `json:"sessionId"`
	ScenarioID   string           `json:"scenarioId,omitempty"`
	Conversation []core.Utterance `json:"conversation"`
	Profile      Profile          `json:"profile"`
	Milestones   []string         `json:"triggeredBreakthroughs"`
	Graph        core.Record      `json:"graph"`
}

func (s *Session) exportData() export {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ex := export{
		SessionID:    s.id,
		Conversation: append([]core.Utterance(nil), s.conversation...),
		Profile:      s.profile.copy(),
		Milestones:   append([]string(nil), s.milestones...),
		Graph:        s.graph.Record(),
	}
	if s.scenario != nil {
		ex.ScenarioID = s.scenario.ID
	}
	return ex
}

// ExportJSON serializes the full session state for download or archival.
func (s *Session) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s.exportData(), "", "  ")
}

// ExportMarkdown renders a human-readable session transcript with the final
// graph state appended.
func (s *Session) ExportMarkdown() string {
	ex := s.exportData()

	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", ex.SessionID)
	if ex.ScenarioID != "" {
		fmt.Fprintf(&b, "Scenario: %s\n\n", ex.ScenarioID)
	}

	b.WriteString("## Conversation\n\n")
	for _, u := range ex.Conversation {
		who := u.Role
		if u.Speaker != "" {
			who = u.Speaker
		}
		fmt.Fprintf(&b, "**%s**: %s\n\n", who, u.Content)
	}

	if len(ex.Milestones) > 0 {
		b.WriteString("## Breakthroughs\n\n")
		for _, id := range ex.Milestones {
			fmt.Fprintf(&b, "- %s\n", id)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Graph (turn %d)\n\n", ex.Graph.Turn)
	for _, n := range ex.Graph.Nodes {
		fmt.Fprintf(&b, "- **%s** (%s, importance %d)", n.Label, n.Type, n.Importance)
		if n.Description != "" {
			fmt.Fprintf(&b, ": %s", n.Description)
		}
		b.WriteString("\n")
	}
	for _, e := range ex.Graph.Edges {
		fmt.Fprintf(&b, "- %s → %s (%s)\n", e.Source, e.Target, e.Type)
	}
	return b.String()
}
