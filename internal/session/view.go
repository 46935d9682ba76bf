package session

import (
	"github.com/rendis/flowgraph/internal/tree"
	"github.com/rendis/flowgraph/pkg/schema"
)

// ToolView is the resolved tool metadata shown for a node.
type ToolView struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Category    string `json:"category,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
}

// NodeView is the render-ready form of a node.
type NodeView struct {
	ID          string                   `json:"id"`
	Kind        string                   `json:"kind"`
	Label       string                   `json:"label"`
	Ref         string                   `json:"ref,omitempty"`
	TaskType    schema.TaskType          `json:"task_type,omitempty"`
	ParentID    string                   `json:"parent_id,omitempty"`
	Children    []string                 `json:"children,omitempty"`
	Depth       int                      `json:"depth"`
	Tool        *ToolView                `json:"tool,omitempty"`
	Unsupported bool                     `json:"unsupported,omitempty"`
	Inputs      []tree.Variable          `json:"inputs,omitempty"`
	Outputs     []tree.Variable          `json:"outputs,omitempty"`
	Status      tree.Status              `json:"status"`
	Position    tree.Position            `json:"position"`
	Issues      []schema.ValidationIssue `json:"issues,omitempty"`
}

// Nodes returns every node depth-first, markers included. Tool metadata is
// resolved against the catalog at call time.
func (s *Session) Nodes() []NodeView {
	var out []NodeView
	s.Tree().Walk(func(n *tree.Node) bool {
		out = append(out, s.view(n))
		return true
	})
	return out
}

// Node returns the view of one node.
func (s *Session) Node(id string) (NodeView, bool) {
	var v NodeView
	ok := s.Tree().View(id, func(n *tree.Node) { v = s.view(n) })
	return v, ok
}

func (s *Session) view(n *tree.Node) NodeView {
	v := NodeView{
		ID:          n.ID,
		Kind:        n.Kind.String(),
		Label:       n.Label,
		Ref:         n.Ref(),
		TaskType:    n.TaskType,
		ParentID:    n.ParentID,
		Children:    append([]string(nil), n.Children...),
		Depth:       n.Depth,
		Unsupported: n.Unsupported,
		Inputs:      n.Inputs,
		Outputs:     n.Outputs,
		Status:      n.Status,
		Position:    n.Position,
		Issues:      n.Issues,
	}
	if n.ToolName != "" && s.catalog != nil {
		if t, ok := s.catalog.Tool(n.ToolName); ok {
			v.Tool = &ToolView{
				Name:        t.Name,
				DisplayName: t.DisplayName,
				Category:    t.Category,
				Icon:        t.Icon,
				Description: t.Description,
			}
		}
	}
	return v
}
