package scenario

import (
	"fmt"
	"sync"

	"github.com/mindweave/mindweave/core"
)

// Part is one addressable inner voice in a scripted scenario. Parts speak in
// character through the multi-responder and are routed to by the probe
// analyzer.
type Part struct {
	ID          string
	Name        string
	Role        string // one-line character brief fed to the responder
	VoicePrompt string // speaking style instructions
	Color       string
}

// Milestone is a scripted breakthrough: a qualitative condition the detector
// watches for, plus the structural graph rewrite applied when it fires.
// Milestones are ordered; each is evaluated only once and only after all
// earlier ones have triggered.
type Milestone struct {
	ID              string
	Name            string
	InsightSummary  string
	DetectionPrompt string
	GraphChanges    core.BatchRewrite
	// PartModifiers adjusts part voice prompts after the milestone fires,
	// keyed by part id.
	PartModifiers map[string]string
	// Warmth is the progress value reported while this milestone is the
	// next one pending.
	Warmth float64
}

// Scenario is a complete scripted session definition: the cast of parts, the
// seed graph the session starts from, and the ordered milestone script.
type Scenario struct {
	ID              string
	Title           string
	Tagline         string
	CaseDescription string
	OpeningLine     string

	Parts     []Part
	SeedNodes []core.Node
	SeedEdges []core.Edge

	Milestones []Milestone
}

// PartByID returns the part with the given id.
func (s *Scenario) PartByID(id string) (Part, bool) {
	for _, p := range s.Parts {
		if p.ID == id {
			return p, true
		}
	}
	return Part{}, false
}

// PartIDs returns the scenario's part ids in cast order.
func (s *Scenario) PartIDs() []string {
	ids := make([]string, len(s.Parts))
	for i, p := range s.Parts {
		ids[i] = p.ID
	}
	return ids
}

// NextMilestone returns the first milestone whose id is not in triggered.
// Milestones fire strictly in script order, so detection never skips ahead
// past an untriggered milestone.
func (s *Scenario) NextMilestone(triggered []string) (Milestone, bool) {
	done := make(map[string]bool, len(triggered))
	for _, id := range triggered {
		done[id] = true
	}
	for _, m := range s.Milestones {
		if !done[m.ID] {
			return m, true
		}
	}
	return Milestone{}, false
}

// MilestoneByID returns the milestone with the given id.
func (s *Scenario) MilestoneByID(id string) (Milestone, bool) {
	for _, m := range s.Milestones {
		if m.ID == id {
			return m, true
		}
	}
	return Milestone{}, false
}

// Info returns the client-facing descriptor for the scenario_loaded event.
func (s *Scenario) Info() core.ScenarioInfo {
	parts := make(map[string]core.ScenarioPartInfo, len(s.Parts))
	for _, p := range s.Parts {
		parts[p.ID] = core.ScenarioPartInfo{Name: p.Name, Color: p.Color}
	}
	return core.ScenarioInfo{
		ID:              s.ID,
		Title:           s.Title,
		Tagline:         s.Tagline,
		CaseDescription: s.CaseDescription,
		Parts:           parts,
	}
}

// Registry holds the scenarios available to new sessions.
type Registry struct {
	mu        sync.RWMutex
	scenarios map[string]*Scenario
}

// NewRegistry creates a registry preloaded with the built-in scenarios.
func NewRegistry() *Registry {
	r := &Registry{scenarios: make(map[string]*Scenario)}
	r.Register(InnerCritic())
	return r
}

// Register adds or replaces a scenario.
func (r *Registry) Register(s *Scenario) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenarios[s.ID] = s
}

// Get returns the scenario with the given id.
func (r *Registry) Get(id string) (*Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", id)
	}
	return s, nil
}

// IDs returns the registered scenario ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.scenarios))
	for id := range r.scenarios {
		ids = append(ids, id)
	}
	return ids
}
