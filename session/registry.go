package session

import (
	"fmt"
	"sync"

	"github.com/mindweave/mindweave/core"
	"github.com/mindweave/mindweave/graph"
	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/scenario"
)

// Registry is the process-wide map from session id to Session. Sessions are
// created lazily on first contact and never evicted.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	records   core.RecordStore
	scenarios *scenario.Registry
	logger    logging.Logger
}

// RegistryOptions configures a session registry.
type RegistryOptions struct {
	// Records backs every session's graph store. Optional; nil disables
	// persistence.
	Records core.RecordStore

	// Scenarios resolves scenario ids on session creation. Optional; nil
	// restricts the registry to companion mode sessions.
	Scenarios *scenario.Registry

	Logger logging.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		sessions:  make(map[string]*Session),
		records:   opts.Records,
		scenarios: opts.Scenarios,
		logger:    opts.Logger,
	}
}

// GetOrCreate returns the session for the given id, creating it on first
// contact. A non-empty scenarioID selects scenario mode; the scenario's seed
// graph is applied only when the underlying graph record is fresh, so a
// restored session does not get re-seeded. The scenario choice of an existing
// session is fixed at creation; a differing scenarioID on a later call is
// ignored.
func (r *Registry) GetOrCreate(sessionID, scenarioID string) (*Session, bool, error) {
	r.mu.RLock()
	existing, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		return existing, false, nil
	}

	var sc *scenario.Scenario
	if scenarioID != "" {
		if r.scenarios == nil {
			return nil, false, fmt.Errorf("scenario %q requested but no scenarios are registered", scenarioID)
		}
		var err error
		sc, err = r.scenarios.Get(scenarioID)
		if err != nil {
			return nil, false, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock; another goroutine may have won.
	if existing, ok := r.sessions[sessionID]; ok {
		return existing, false, nil
	}

	g := graph.New(sessionID, func(o *graph.Options) {
		o.Records = r.records
		o.Logger = logging.WithSession(r.logger, sessionID)
	})

	if sc != nil && g.Turn() == 0 && len(g.Snapshot().Nodes) == 0 {
		g.Seed(sc.SeedNodes, sc.SeedEdges)
	}

	sess := newSession(sessionID, g, sc)
	r.sessions[sessionID] = sess
	r.logger.Info("session created", "session_id", sessionID, "scenario", scenarioID)
	return sess, true, nil
}

// Get returns the session for the given id if it exists.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
