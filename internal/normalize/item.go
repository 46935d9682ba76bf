package normalize

import "github.com/rendis/flowgraph/pkg/schema"

// Item is one node of the normalized representation.
type Item struct {
	ID   string
	Kind Kind
	// Path locates the task in the healed task array, e.g. tasks[2].loopOver[0].
	// Synthetic items carry the path of their owning container.
	Path string
	// Task is an owned snapshot of the healed task. Nil for synthetic items.
	Task     *schema.Task
	Children []*Item

	Loop        *LoopMeta
	Decision    *DecisionMeta
	Case        *CaseMeta
	Branch      *BranchMeta
	Join        *JoinMeta
	SubWorkflow *SubWorkflowMeta
	Terminate   *TerminateMeta

	// Reason explains why a KindUnsupported item was not recognized.
	Reason string
}

// LoopMode is the authored loop style. It is editor metadata only.
type LoopMode string

const (
	LoopFixed      LoopMode = "fixed"
	LoopList       LoopMode = "list"
	LoopExpression LoopMode = "expression"
)

type LoopMeta struct {
	Mode          LoopMode
	Count         int    // fixed mode with a literal count
	CountExpr     string // fixed mode driven by a placeholder
	Items         any    // list mode source
	Condition     string
	EvaluatorType string
}

type DecisionMeta struct {
	EvaluatorType string
	Expression    string
	Cases         []string
}

type CaseMeta struct {
	Name    string
	Default bool
}

type BranchMeta struct {
	Index int
}

type JoinMeta struct {
	ForkID   string
	Branches []int // nil means all branches
	JoinOn   []string
}

type SubWorkflowMeta struct {
	Name    string
	Version int
	Pinned  bool
	Inline  bool
}

type TerminateMeta struct {
	Status string
	Reason string
	Output map[string]any
}

// Reconciliation records one self-healing correction of a join.
type Reconciliation struct {
	JoinID         string   `json:"join_id"`
	ForkID         string   `json:"fork_id"`
	BranchCount    int      `json:"branch_count"`
	BranchesBefore []int    `json:"branches_before,omitempty"`
	BranchesAfter  []int    `json:"branches_after,omitempty"`
	JoinOnBefore   []string `json:"join_on_before,omitempty"`
	JoinOnAfter    []string `json:"join_on_after,omitempty"`
}

// Walk visits items depth-first in order. Returning false skips the children.
func Walk(items []*Item, fn func(it *Item, parent *Item) bool) {
	var walk func(items []*Item, parent *Item)
	walk = func(items []*Item, parent *Item) {
		for _, it := range items {
			if fn(it, parent) {
				walk(it.Children, it)
			}
		}
	}
	walk(items, nil)
}
