// Package tree builds the navigable node tree the canvas renders and the
// binder writes execution status onto.
package tree

import (
	"github.com/rendis/flowgraph/internal/normalize"
	"github.com/rendis/flowgraph/pkg/schema"
)

// State is the display status of a node.
type State string

const (
	StatePending   State = "PENDING"
	StateScheduled State = "SCHEDULED"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateSkipped   State = "SKIPPED"
	StateCanceled  State = "CANCELED"
)

// Active reports whether the state means work is in flight.
func (s State) Active() bool {
	return s == StateScheduled || s == StateRunning
}

// Successful reports whether the state is terminal without failure.
func (s State) Successful() bool {
	return s == StateCompleted || s == StateSkipped
}

// Status is the binder-owned runtime slot of a node.
type Status struct {
	State      State             `json:"state"`
	TaskStatus schema.TaskStatus `json:"task_status,omitempty"`
	TaskID     string            `json:"task_id,omitempty"`
	StartTime  int64             `json:"start_time,omitempty"`
	EndTime    int64             `json:"end_time,omitempty"`
	Iterations int               `json:"iterations,omitempty"`
	RetryCount int               `json:"retry_count,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Input      map[string]any    `json:"input,omitempty"`
	Output     map[string]any    `json:"output,omitempty"`

	// External payload pointers for inputs/outputs too large to inline.
	ExternalInput  string `json:"external_input,omitempty"`
	ExternalOutput string `json:"external_output,omitempty"`

	// Derived is set on containers whose state was aggregated from descendants.
	Derived bool `json:"derived,omitempty"`
}

// Position is the layout-owned placement of a node.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Variable is one display input or output of a node.
type Variable struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	List     bool   `json:"list,omitempty"`
	Required bool   `json:"required,omitempty"`
	Declared bool   `json:"declared"`
	Set      bool   `json:"set"`
	Value    any    `json:"value,omitempty"`
	Default  any    `json:"default,omitempty"`
}

// Node is one element of the tree. Structural fields are written by the
// builder, Position only by layout and Status only by the binder.
type Node struct {
	ID       string
	Kind     normalize.Kind
	Label    string
	TaskType schema.TaskType
	// ToolName is the catalog key the node resolved against (or tried to).
	ToolName    string
	Unsupported bool
	// Path locates the task in the tree's task array.
	Path string
	Task *schema.Task

	ParentID string
	Children []string
	Depth    int

	Inputs  []Variable
	Outputs []Variable
	Issues  []schema.ValidationIssue

	Loop        *normalize.LoopMeta
	Decision    *normalize.DecisionMeta
	Case        *normalize.CaseMeta
	Branch      *normalize.BranchMeta
	Join        *normalize.JoinMeta
	SubWorkflow *normalize.SubWorkflowMeta
	Terminate   *normalize.TerminateMeta

	Position Position
	Status   Status
}

// Ref returns the engine reference name, or "" for synthetic nodes.
func (n *Node) Ref() string {
	if n.Task == nil {
		return ""
	}
	return n.Task.TaskReferenceName
}

// IsContainer reports whether the node owns children.
func (n *Node) IsContainer() bool {
	return n.Kind.IsContainer()
}
