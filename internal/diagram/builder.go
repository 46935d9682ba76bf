package diagram

import (
	"strings"

	"github.com/rendis/flowgraph/internal/normalize"
	"github.com/rendis/flowgraph/internal/tree"
)

type entry struct {
	node     *Node
	kind     normalize.Kind
	children []string
}

// Build constructs a DiagramModel from a node tree. Statuses are overlaid
// only when the tree carries a binding, so an unbound tree renders plain.
func Build(tr *tree.Tree, title string) *DiagramModel {
	entries := make(map[string]*entry)
	bound := false
	tr.Walk(func(n *tree.Node) bool {
		entries[n.ID] = &entry{
			node:     &Node{ID: n.ID, Label: n.Label, Kind: NodeKind(n.Kind.String()), Status: overlay(n.Status)},
			kind:     n.Kind,
			children: append([]string(nil), n.Children...),
		}
		if n.Status.State != tree.StatePending {
			bound = true
		}
		return true
	})
	if !bound {
		for _, e := range entries {
			e.node.Status = nil
		}
	}

	b := &modelBuilder{entries: entries}
	m := &DiagramModel{Title: title}
	m.Nodes, m.Edges = b.sequence(tr.Roots())
	return m
}

type modelBuilder struct {
	entries map[string]*entry
}

// sequence expands ids in order and chains them with edges.
func (b *modelBuilder) sequence(ids []string) ([]*Node, []Edge) {
	nodes := make([]*Node, 0, len(ids))
	var edges []Edge
	for _, id := range ids {
		n := b.expand(id)
		if n == nil {
			continue
		}
		if len(nodes) > 0 {
			edges = append(edges, Edge{From: nodes[len(nodes)-1].ID, To: n.ID})
		}
		nodes = append(nodes, n)
	}
	return nodes, edges
}

func (b *modelBuilder) expand(id string) *Node {
	e, ok := b.entries[id]
	if !ok {
		return nil
	}
	switch e.kind {
	case normalize.KindLoop:
		sg := &SubGraph{ID: id + "_body", Label: "loop body"}
		sg.Nodes, sg.Edges = b.sequence(e.children)
		e.node.Children = []*SubGraph{sg}
	case normalize.KindDecision, normalize.KindFork:
		for _, armID := range e.children {
			arm, ok := b.entries[armID]
			if !ok {
				continue
			}
			sg := &SubGraph{ID: armID, Label: arm.node.Label}
			sg.Nodes, sg.Edges = b.sequence(arm.children)
			e.node.Children = append(e.node.Children, sg)
		}
	}
	return e.node
}

func overlay(s tree.Status) *StatusOverlay {
	o := &StatusOverlay{
		Status:     strings.ToLower(string(s.State)),
		Iterations: s.Iterations,
		RetryCount: s.RetryCount,
		Error:      s.Reason,
	}
	if s.StartTime > 0 && s.EndTime >= s.StartTime {
		o.DurationMs = s.EndTime - s.StartTime
	}
	return o
}
