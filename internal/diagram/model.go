// Package diagram renders a node tree as Mermaid, ASCII or PNG.
package diagram

// NodeKind classifies a diagram node. Values match the tree kind names.
type NodeKind string

const (
	NodeKindTask        NodeKind = "task"
	NodeKindLoop        NodeKind = "loop"
	NodeKindDecision    NodeKind = "decision"
	NodeKindFork        NodeKind = "fork"
	NodeKindJoin        NodeKind = "join"
	NodeKindSubWorkflow NodeKind = "subworkflow"
	NodeKindTerminate   NodeKind = "terminate"
	NodeKindUnsupported NodeKind = "unsupported"
	NodeKindStart       NodeKind = "start"
	NodeKindEnd         NodeKind = "end"
)

// DiagramModel is the intermediate representation used by all renderers.
// Nodes is the root sequence, markers included.
type DiagramModel struct {
	Title string
	Nodes []*Node
	Edges []Edge
}

// Node represents a single task in the diagram.
type Node struct {
	ID       string
	Label    string
	Kind     NodeKind
	Status   *StatusOverlay
	Children []*SubGraph // decision cases, fork branches, loop body
}

// SubGraph holds the nested sequence of one case, branch or loop body.
type SubGraph struct {
	ID    string
	Label string
	Nodes []*Node
	Edges []Edge
}

// StatusOverlay carries the bound runtime state of a node.
type StatusOverlay struct {
	Status     string // lower-cased tree.State
	DurationMs int64
	Iterations int
	RetryCount int
	Error      string
}

// Edge connects two consecutive nodes of a sequence.
type Edge struct {
	From  string
	To    string
	Label string
}
