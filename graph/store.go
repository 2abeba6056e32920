package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agext/levenshtein"

	"github.com/mindweave/mindweave/core"
	"github.com/mindweave/mindweave/logging"
)

// fuzzyThreshold is the minimum label similarity at which an incoming entity
// is treated as a re-mention of an existing node of the same type.
const fuzzyThreshold = 0.6

// matchParams lowers the prefix-bonus threshold so head-anchored variants
// of the same label ("grandma" / "grandmother") clear the dedup threshold.
var matchParams = levenshtein.NewParams().BonusThreshold(0.5)

// Store is the per-session knowledge graph: id-keyed nodes, insertion-ordered
// edges, an append-only change history, and a monotonic turn counter.
//
// All operations mutate in-memory state synchronously. When a RecordStore is
// attached, the full record is persisted after every mutating call; a failed
// write is logged and never rolls back or blocks the in-memory change.
//
// Store is safe for concurrent use, but callers processing messages against
// the same session must still serialize whole pipeline runs: turn numbering
// and fuzzy matching are only meaningful between complete messages.
type Store struct {
	mu        sync.RWMutex
	sessionID string
	nodes     map[string]*core.Node
	order     []string // node insertion order, drives rendering
	edges     []core.Edge
	history   []core.HistoryEntry
	turn      int

	records core.RecordStore
	logger  logging.Logger
}

// Options configures a graph store.
type Options struct {
	// Records receives the full graph record after every mutating call.
	// Optional; nil disables persistence.
	Records core.RecordStore

	Logger logging.Logger
}

// New creates a graph store for the given session. If a record store is
// attached and holds a record for the session, the graph is restored from it.
func New(sessionID string, optFns ...func(o *Options)) *Store {
	opts := Options{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{
		sessionID: sessionID,
		nodes:     make(map[string]*core.Node),
		records:   opts.Records,
		logger:    opts.Logger,
	}

	if s.records != nil {
		rec, found, err := s.records.Load(sessionID)
		if err != nil {
			s.logger.Warn("graph record load failed", "session_id", sessionID, "error", err.Error())
		} else if found {
			s.restore(rec)
		}
	}

	return s
}

func (s *Store) restore(rec core.Record) {
	for i := range rec.Nodes {
		n := rec.Nodes[i]
		s.nodes[n.ID] = &n
		s.order = append(s.order, n.ID)
	}
	s.edges = append(s.edges, rec.Edges...)
	s.history = append(s.history, rec.History...)
	s.turn = rec.Turn
}

// Turn returns the current turn counter.
func (s *Store) Turn() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.turn
}

// AdvanceTurn increments the turn counter. Called exactly once per fully
// processed user message, before any of that message's mutations are applied,
// so that ChangesSince(previous turn) covers them.
func (s *Store) AdvanceTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turn++
	return s.turn
}

// UpsertNode inserts or merges a node and reports whether it was created.
//
// If the id is already present, incoming non-zero fields are merged into the
// existing node and one update_node entry records the per-field old/new
// values, if anything actually changed. If the id is absent, nodes of the
// same type are scanned for a label similarity of at least 0.6 whether or
// not isUpdate is set; the best match, if any, absorbs the mention instead
// of a duplicate being inserted. Otherwise the node is inserted as new;
// when isUpdate asked for update routing this fall-through is logged rather
// than dropping the entity.
func (s *Store) UpsertNode(n core.Node, isUpdate bool) (core.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nodes[n.ID]; ok {
		s.mergeNode(existing, n)
		s.persist()
		return *existing, false
	}

	if match := s.bestLabelMatch(n); match != nil {
		s.mergeNode(match, n)
		s.persist()
		return *match, false
	}

	if isUpdate {
		// Update routing for an unknown id with no close label falls
		// through to an insert rather than dropping the entity.
		s.logger.Debug("update for unknown node, inserting", "session_id", s.sessionID, "node_id", n.ID)
	}

	n.Normalize()
	s.insertNode(n)
	s.appendHistory(core.HistoryEntry{Turn: s.turn, Action: core.ActionCreateNode, NodeID: n.ID})
	s.persist()
	return n, true
}

// UpdateNode merges the given fields into an existing node, recording one
// update_node history entry covering all changed fields. Returns false
// without mutating anything if the id is unknown.
func (s *Store) UpdateNode(id string, fields map[string]any) (core.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.updateNodeLocked(id, fields)
	if ok {
		s.persist()
	}
	return node, ok
}

func (s *Store) updateNodeLocked(id string, fields map[string]any) (core.Node, bool) {
	existing, ok := s.nodes[id]
	if !ok {
		return core.Node{}, false
	}

	s.mergeNode(existing, nodeFromFields(fields))
	return *existing, true
}

// RemoveNode deletes a node and every edge touching it. No-op on unknown ids.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return false
	}

	delete(s.nodes, id)
	for i, nid := range s.order {
		if nid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	s.edges = kept

	s.appendHistory(core.HistoryEntry{Turn: s.turn, Action: core.ActionRemoveNode, NodeID: id})
	s.persist()
	return true
}

// UpsertEdge inserts an edge or overwrites the attributes of the existing
// edge sharing its (source, target, type) key. Both endpoints must already be
// present; an edge referencing an unknown node is dropped as a no-op.
// Re-applying an identical edge changes nothing and appends no history.
func (s *Store) UpsertEdge(e core.Edge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.upsertEdgeLocked(e)
	if changed {
		s.persist()
	}
	return changed
}

func (s *Store) upsertEdgeLocked(e core.Edge) bool {
	if _, ok := s.nodes[e.Source]; !ok {
		s.logger.Debug("edge references unknown source, skipping", "session_id", s.sessionID, "source", e.Source)
		return false
	}
	if _, ok := s.nodes[e.Target]; !ok {
		s.logger.Debug("edge references unknown target, skipping", "session_id", s.sessionID, "target", e.Target)
		return false
	}

	e.Type = core.ParseEdgeType(string(e.Type))
	e.Visibility = core.ParseVisibility(string(e.Visibility))

	for i, existing := range s.edges {
		if existing.Key() != e.Key() {
			continue
		}
		if existing == e {
			return false
		}
		s.edges[i] = e
		return true
	}

	s.edges = append(s.edges, e)
	s.appendHistory(core.HistoryEntry{Turn: s.turn, Action: core.ActionCreateEdge, Source: e.Source, Target: e.Target, Type: e.Type})
	return true
}

// RemoveEdge deletes the edge with the given key. Idempotent: unknown keys
// are a no-op.
func (s *Store) RemoveEdge(ref core.EdgeRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.removeEdgeLocked(ref)
	if removed {
		s.persist()
	}
	return removed
}

func (s *Store) removeEdgeLocked(ref core.EdgeRef) bool {
	for i, e := range s.edges {
		if e.Key() == ref {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			s.appendHistory(core.HistoryEntry{Turn: s.turn, Action: core.ActionRemoveEdge, Source: ref.Source, Target: ref.Target, Type: ref.Type})
			return true
		}
	}
	return false
}

// IlluminateEdge reveals a previously hidden or dim edge by setting its
// visibility to bright, without deleting or re-creating it. Idempotent:
// unknown keys and already-bright edges are a no-op.
func (s *Store) IlluminateEdge(ref core.EdgeRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	lit := s.illuminateEdgeLocked(ref)
	if lit {
		s.persist()
	}
	return lit
}

func (s *Store) illuminateEdgeLocked(ref core.EdgeRef) bool {
	for i, e := range s.edges {
		if e.Key() != ref || e.Visibility == core.VisibilityBright {
			continue
		}
		s.edges[i].Visibility = core.VisibilityBright
		s.appendHistory(core.HistoryEntry{Turn: s.turn, Action: core.ActionIlluminateEdge, Source: ref.Source, Target: ref.Target, Type: ref.Type})
		return true
	}
	return false
}

// ApplyRewrite applies a batch structural rewrite in fixed order: illuminate
// edges, dissolve edges, new nodes, new edges, node field changes. The order
// guarantees a dissolved edge cannot reappear as new, and a new node exists
// before new edges referencing it are applied. Sub-changes that would violate
// a structural invariant (unknown endpoint, duplicate node id) are skipped,
// never escalated. The returned diff enumerates exactly what was applied.
func (s *Store) ApplyRewrite(rw core.BatchRewrite) core.RewriteDiff {
	s.mu.Lock()
	defer s.mu.Unlock()

	diff := core.RewriteDiff{
		IlluminatedEdges: []core.EdgeRef{},
		DissolvedEdges:   []core.EdgeRef{},
		NewNodes:         []core.Node{},
		NewEdges:         []core.Edge{},
		ChangedNodes:     []core.NodeFieldChange{},
	}

	for _, ref := range rw.IlluminateEdges {
		if s.illuminateEdgeLocked(ref) {
			diff.IlluminatedEdges = append(diff.IlluminatedEdges, ref)
		}
	}
	for _, ref := range rw.DissolveEdges {
		if s.removeEdgeLocked(ref) {
			diff.DissolvedEdges = append(diff.DissolvedEdges, ref)
		}
	}
	for _, n := range rw.NewNodes {
		if _, ok := s.nodes[n.ID]; ok {
			continue
		}
		n.Normalize()
		s.insertNode(n)
		s.appendHistory(core.HistoryEntry{Turn: s.turn, Action: core.ActionCreateNode, NodeID: n.ID})
		diff.NewNodes = append(diff.NewNodes, n)
	}
	for _, e := range rw.NewEdges {
		if s.upsertEdgeLocked(e) {
			e.Type = core.ParseEdgeType(string(e.Type))
			e.Visibility = core.ParseVisibility(string(e.Visibility))
			diff.NewEdges = append(diff.NewEdges, e)
		}
	}
	for _, ch := range rw.ChangeNodes {
		if _, ok := s.updateNodeLocked(ch.ID, ch.Fields); ok {
			diff.ChangedNodes = append(diff.ChangedNodes, ch)
		}
	}

	s.persist()
	return diff
}

// ChangesSince returns the flattened per-field node changes whose owning
// history entry has a turn strictly greater than the given one. Only
// update_node entries carry field changes. Fields within one entry are
// reported in sorted order for determinism.
func (s *Store) ChangesSince(turn int) []core.NodeChange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	changes := []core.NodeChange{}
	for _, entry := range s.history {
		if entry.Turn <= turn || entry.Action != core.ActionUpdateNode {
			continue
		}
		fields := make([]string, 0, len(entry.Changes))
		for field := range entry.Changes {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fc := entry.Changes[field]
			changes = append(changes, core.NodeChange{NodeID: entry.NodeID, Field: field, OldValue: fc.Old, NewValue: fc.New})
		}
	}
	return changes
}

// Snapshot materializes the full client-facing graph state.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := core.Snapshot{
		Nodes: make([]core.Node, 0, len(s.order)),
		Links: make([]core.Edge, len(s.edges)),
		Turn:  s.turn,
	}
	for _, id := range s.order {
		snap.Nodes = append(snap.Nodes, *s.nodes[id])
	}
	copy(snap.Links, s.edges)
	return snap
}

// Record materializes the durable per-session record, history included.
func (s *Store) Record() core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.recordLocked()
}

func (s *Store) recordLocked() core.Record {
	rec := core.Record{
		Nodes:   make([]core.Node, 0, len(s.order)),
		Edges:   make([]core.Edge, len(s.edges)),
		History: make([]core.HistoryEntry, len(s.history)),
		Turn:    s.turn,
	}
	for _, id := range s.order {
		rec.Nodes = append(rec.Nodes, *s.nodes[id])
	}
	copy(rec.Edges, s.edges)
	copy(rec.History, s.history)
	return rec
}

// NodeByID returns a copy of the node with the given id.
func (s *Store) NodeByID(id string) (core.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return core.Node{}, false
	}
	return *n, true
}

// RenderForPrompt produces a deterministic, insertion-order-stable text
// rendering of the current graph for use as collaborator input.
func (s *Store) RenderForPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return "The graph is empty."
	}

	var b strings.Builder
	b.WriteString("Nodes:\n")
	for _, id := range s.order {
		n := s.nodes[id]
		fmt.Fprintf(&b, "- %s [%s, importance %d]", n.Label, n.Type, n.Importance)
		if n.Description != "" {
			fmt.Fprintf(&b, ": %s", n.Description)
		}
		b.WriteString("\n")
	}
	if len(s.edges) > 0 {
		b.WriteString("Relationships:\n")
		for _, e := range s.edges {
			fmt.Fprintf(&b, "- %s --[%s]--> %s\n", e.Source, e.Type, e.Target)
		}
	}
	return b.String()
}

// NodeSummary lists existing node ids with labels and types, one per line.
// Fed to the extractor so re-mentions can be flagged as updates.
func (s *Store) NodeSummary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return "(none)"
	}

	var b strings.Builder
	for _, id := range s.order {
		n := s.nodes[id]
		fmt.Fprintf(&b, "%s: %s (%s)\n", n.ID, n.Label, n.Type)
	}
	return b.String()
}

// Seed initializes the graph from scenario-defined nodes and edges. Seeded
// state is the session's starting point, not a user action, so no history is
// recorded and the turn counter is untouched.
func (s *Store) Seed(nodes []core.Node, edges []core.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range nodes {
		if _, ok := s.nodes[n.ID]; ok {
			continue
		}
		n.Normalize()
		s.insertNode(n)
	}
	for _, e := range edges {
		if _, ok := s.nodes[e.Source]; !ok {
			continue
		}
		if _, ok := s.nodes[e.Target]; !ok {
			continue
		}
		e.Type = core.ParseEdgeType(string(e.Type))
		e.Visibility = core.ParseVisibility(string(e.Visibility))
		s.edges = append(s.edges, e)
	}
	s.persist()
}

func (s *Store) insertNode(n core.Node) {
	stored := n
	s.nodes[n.ID] = &stored
	s.order = append(s.order, n.ID)
}

// mergeNode merges the non-zero fields of in into existing, appending one
// update_node history entry if anything changed. The id never changes.
func (s *Store) mergeNode(existing *core.Node, in core.Node) {
	changes := make(map[string]core.FieldChange)

	set := func(field string, old, val any, apply func()) {
		if old == val {
			return
		}
		changes[field] = core.FieldChange{Old: old, New: val}
		apply()
	}

	if in.Label != "" {
		set("label", existing.Label, in.Label, func() { existing.Label = in.Label })
	}
	if in.Type != "" {
		t := core.ParseNodeType(string(in.Type))
		set("type", string(existing.Type), string(t), func() { existing.Type = t })
	}
	if in.Description != "" {
		set("description", existing.Description, in.Description, func() { existing.Description = in.Description })
	}
	if in.Importance != 0 {
		imp := clampImportance(in.Importance)
		set("importance", existing.Importance, imp, func() { existing.Importance = imp })
	}
	if in.Size != 0 {
		set("size", existing.Size, in.Size, func() { existing.Size = in.Size })
	}
	if in.Visibility != "" {
		v := core.ParseVisibility(string(in.Visibility))
		set("visibility", string(existing.Visibility), string(v), func() { existing.Visibility = v })
	}
	if in.Color != "" {
		set("color", existing.Color, in.Color, func() { existing.Color = in.Color })
	}

	if len(changes) == 0 {
		return
	}
	s.appendHistory(core.HistoryEntry{Turn: s.turn, Action: core.ActionUpdateNode, NodeID: existing.ID, Changes: changes})
}

// bestLabelMatch scans nodes of the same type for the closest normalized
// label and returns it when the similarity clears the dedup threshold.
func (s *Store) bestLabelMatch(n core.Node) *core.Node {
	if n.Label == "" {
		return nil
	}

	in := normalizeLabel(n.Label)
	inType := core.ParseNodeType(string(n.Type))

	var best *core.Node
	bestScore := 0.0
	for _, id := range s.order {
		candidate := s.nodes[id]
		if candidate.Type != inType {
			continue
		}
		score := levenshtein.Match(in, normalizeLabel(candidate.Label), matchParams)
		if score >= fuzzyThreshold && score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	if best != nil {
		s.logger.Debug("fuzzy matched entity", "session_id", s.sessionID, "label", n.Label, "matched", best.ID, "score", bestScore)
	}
	return best
}

func (s *Store) appendHistory(entry core.HistoryEntry) {
	s.history = append(s.history, entry)
}

// persist writes the full record through to the attached store. Failures are
// logged; the in-memory state stays authoritative.
func (s *Store) persist() {
	if s.records == nil {
		return
	}
	if err := s.records.Save(s.sessionID, s.recordLocked()); err != nil {
		s.logger.Warn("graph record write failed", "session_id", s.sessionID, "error", err.Error())
	}
}

var labelPrefixes = []string{"my ", "the ", "a ", "an ", "our ", "her ", "his ", "their "}

// normalizeLabel lowercases a label and strips leading articles and
// possessives so "My Grandma" and "Grandmother" compare on their heads.
func normalizeLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	for stripped := true; stripped; {
		stripped = false
		for _, p := range labelPrefixes {
			if strings.HasPrefix(l, p) {
				l = strings.TrimSpace(strings.TrimPrefix(l, p))
				stripped = true
			}
		}
	}
	return l
}

func clampImportance(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// nodeFromFields maps a loosely typed field map onto a node value used as a
// merge source. Numeric values may arrive as float64 after a JSON round trip.
func nodeFromFields(fields map[string]any) core.Node {
	var n core.Node
	for field, v := range fields {
		switch field {
		case "label":
			n.Label, _ = v.(string)
		case "type":
			if str, ok := v.(string); ok {
				n.Type = core.NodeType(str)
			}
		case "description":
			n.Description, _ = v.(string)
		case "importance":
			n.Importance = toInt(v)
		case "size":
			n.Size = toInt(v)
		case "visibility":
			if str, ok := v.(string); ok {
				n.Visibility = core.Visibility(str)
			}
		case "color":
			n.Color, _ = v.(string)
		}
	}
	return n
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
