package core

// NodeType categorizes an extracted entity. The set is closed: values
// arriving from collaborators are coerced through ParseNodeType before they
// reach the graph store.
type NodeType string

const (
	// NodeTypeMemory is a recalled episode or fact.
	NodeTypeMemory NodeType = "memory"
	// NodeTypePerson is a person mentioned by the user.
	NodeTypePerson NodeType = "person"
	// NodeTypeValue is a held value or principle.
	NodeTypeValue NodeType = "value"
	// NodeTypeEmotion is a named feeling.
	NodeTypeEmotion NodeType = "emotion"
	// NodeTypeRitual is a recurring practice or habit.
	NodeTypeRitual NodeType = "ritual"
	// NodeTypePlace is a physical location.
	NodeTypePlace NodeType = "place"
	// NodeTypeArtifact is a meaningful object.
	NodeTypeArtifact NodeType = "artifact"
	// NodeTypePart is an internal part/persona in scenario sessions.
	NodeTypePart NodeType = "part"
	// NodeTypeInsight is a realization produced by a milestone.
	NodeTypeInsight NodeType = "insight"
)

// ParseNodeType coerces a raw string onto the closed NodeType set. Unknown
// values map to NodeTypeMemory rather than propagating into the store.
func ParseNodeType(s string) NodeType {
	switch NodeType(s) {
	case NodeTypeMemory, NodeTypePerson, NodeTypeValue, NodeTypeEmotion,
		NodeTypeRitual, NodeTypePlace, NodeTypeArtifact, NodeTypePart, NodeTypeInsight:
		return NodeType(s)
	default:
		return NodeTypeMemory
	}
}

// Visibility controls rendering emphasis and reveal semantics for nodes and
// edges. Hidden elements exist in the graph but are not surfaced until
// illuminated.
type Visibility string

const (
	// VisibilityBright renders the element prominently.
	VisibilityBright Visibility = "bright"
	// VisibilityDim renders the element de-emphasized.
	VisibilityDim Visibility = "dim"
	// VisibilityHidden keeps the element invisible until revealed.
	VisibilityHidden Visibility = "hidden"
)

// ParseVisibility coerces a raw string onto the visibility tri-state,
// defaulting to bright.
func ParseVisibility(s string) Visibility {
	switch Visibility(s) {
	case VisibilityBright, VisibilityDim, VisibilityHidden:
		return Visibility(s)
	default:
		return VisibilityBright
	}
}

// NodeColors maps node types to their default render color.
var NodeColors = map[NodeType]string{
	NodeTypeMemory:   "#E8A94B",
	NodeTypePerson:   "#F0EDE8",
	NodeTypeValue:    "#C47B8A",
	NodeTypeEmotion:  "#7B9FD4",
	NodeTypeRitual:   "#7BAF8A",
	NodeTypePlace:    "#FB923C",
	NodeTypeArtifact: "#F472B6",
	NodeTypePart:     "#E8A94B",
	NodeTypeInsight:  "#FB923C",
}

// Node is a single entity in a session graph. IDs are unique and stable for
// the lifetime of the session.
type Node struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Type        NodeType   `json:"type"`
	Description string     `json:"description,omitempty"`
	Importance  int        `json:"importance,omitempty"`
	Size        int        `json:"size,omitempty"`
	Visibility  Visibility `json:"visibility,omitempty"`
	Color       string     `json:"color,omitempty"`
}

// Normalize clamps importance to 1..10 and fills defaulted fields so every
// stored node is fully populated.
func (n *Node) Normalize() {
	n.Type = ParseNodeType(string(n.Type))
	if n.Importance < 1 {
		n.Importance = 1
	}
	if n.Importance > 10 {
		n.Importance = 10
	}
	if n.Size == 0 {
		n.Size = n.Importance
	}
	n.Visibility = ParseVisibility(string(n.Visibility))
	if n.Color == "" {
		n.Color = NodeColors[n.Type]
	}
}

// EdgeType names the relation an edge expresses. The set covers both the
// conversational relations produced by extraction and the structural
// relations used by scenario seed graphs and milestone rewrites.
type EdgeType string

// Conversational relations.
const (
	EdgeFeltDuring     EdgeType = "felt_during"
	EdgeConnectedTo    EdgeType = "connected_to"
	EdgeRemindsOf      EdgeType = "reminds_of"
	EdgeValuedBy       EdgeType = "valued_by"
	EdgeAssociatedWith EdgeType = "associated_with"
	EdgeEvolvedFrom    EdgeType = "evolved_from"
	EdgeContradicts    EdgeType = "contradicts"
)

// Structural relations used by scenarios.
const (
	EdgeDrives      EdgeType = "drives"
	EdgeInforms     EdgeType = "informs"
	EdgeReveals     EdgeType = "reveals"
	EdgeExplains    EdgeType = "explains"
	EdgeEnables     EdgeType = "enables"
	EdgeEvolvesInto EdgeType = "evolves_into"
	EdgeSuppresses  EdgeType = "suppresses"
)

// ParseEdgeType coerces a raw string onto the known relation set. Unknown
// values map to connected_to.
func ParseEdgeType(s string) EdgeType {
	switch EdgeType(s) {
	case EdgeFeltDuring, EdgeConnectedTo, EdgeRemindsOf, EdgeValuedBy,
		EdgeAssociatedWith, EdgeEvolvedFrom, EdgeContradicts,
		EdgeDrives, EdgeInforms, EdgeReveals, EdgeExplains,
		EdgeEnables, EdgeEvolvesInto, EdgeSuppresses:
		return EdgeType(s)
	default:
		return EdgeConnectedTo
	}
}

// Edge is a directed relation between two nodes. Edges are unique per
// (Source, Target, Type) triple; re-upserting the same triple overwrites
// attributes in place.
type Edge struct {
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Type       EdgeType   `json:"type"`
	Label      string     `json:"label,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`
}

// Key returns the uniqueness key for this edge.
func (e Edge) Key() EdgeRef { return EdgeRef{Source: e.Source, Target: e.Target, Type: e.Type} }

// EdgeRef identifies an edge by its uniqueness triple without carrying
// attributes. Used by rewrites and history entries.
type EdgeRef struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
}
