package core

// HistoryAction enumerates the state-changing operations recorded in the
// graph history.
type HistoryAction string

const (
	// ActionCreateNode records a node insert.
	ActionCreateNode HistoryAction = "create_node"
	// ActionUpdateNode records a node field merge with per-field old/new values.
	ActionUpdateNode HistoryAction = "update_node"
	// ActionRemoveNode records a node delete (with edge cascade).
	ActionRemoveNode HistoryAction = "remove_node"
	// ActionCreateEdge records an edge insert.
	ActionCreateEdge HistoryAction = "create_edge"
	// ActionRemoveEdge records an edge delete.
	ActionRemoveEdge HistoryAction = "remove_edge"
	// ActionIlluminateEdge records a hidden edge being made bright.
	ActionIlluminateEdge HistoryAction = "illuminate_edge"
)

// FieldChange captures the before/after values of one node field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// HistoryEntry is one append-only record of a state-changing graph call.
// Exactly one entry is appended per call, never per internal step. Turn
// values are non-decreasing in append order.
type HistoryEntry struct {
	Turn    int                    `json:"turn"`
	Action  HistoryAction          `json:"action"`
	NodeID  string                 `json:"nodeId,omitempty"`
	Source  string                 `json:"source,omitempty"`
	Target  string                 `json:"target,omitempty"`
	Type    EdgeType               `json:"type,omitempty"`
	Changes map[string]FieldChange `json:"changes,omitempty"`
}

// NodeChange is a flattened single-field change reported to clients, derived
// from update_node history entries.
type NodeChange struct {
	NodeID   string `json:"nodeId"`
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// Snapshot is the full client-facing materialization of a graph.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Links []Edge `json:"links"`
	Turn  int    `json:"turn"`
}

// Record is the durable per-session graph record, rewritten in full on every
// mutating call.
type Record struct {
	Nodes   []Node         `json:"nodes"`
	Edges   []Edge         `json:"edges"`
	History []HistoryEntry `json:"history"`
	Turn    int            `json:"turn"`
}

// NodeFieldChange targets an existing node with a partial field update
// inside a batch rewrite.
type NodeFieldChange struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// BatchRewrite is a milestone-driven structural change set. Application
// order is fixed: illuminate edges, dissolve edges, new nodes, new edges,
// node field changes. A dissolved edge must not reappear as new, and a new
// node must exist before new edges referencing it are applied.
type BatchRewrite struct {
	IlluminateEdges []EdgeRef         `json:"illuminateEdges,omitempty"`
	DissolveEdges   []EdgeRef         `json:"dissolveEdges,omitempty"`
	NewNodes        []Node            `json:"newNodes,omitempty"`
	NewEdges        []Edge            `json:"newEdges,omitempty"`
	ChangeNodes     []NodeFieldChange `json:"changeNodes,omitempty"`
}

// IsZero reports whether the rewrite carries no changes at all.
func (b BatchRewrite) IsZero() bool {
	return len(b.IlluminateEdges) == 0 && len(b.DissolveEdges) == 0 &&
		len(b.NewNodes) == 0 && len(b.NewEdges) == 0 && len(b.ChangeNodes) == 0
}

// RewriteDiff enumerates exactly what a batch rewrite applied, in the order
// it was applied.
type RewriteDiff struct {
	IlluminatedEdges []EdgeRef         `json:"illuminated_edges"`
	DissolvedEdges   []EdgeRef         `json:"dissolved_edges"`
	NewNodes         []Node            `json:"new_nodes"`
	NewEdges         []Edge            `json:"new_edges"`
	ChangedNodes     []NodeFieldChange `json:"changed_nodes"`
}
