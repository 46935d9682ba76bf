package tree

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rendis/flowgraph/internal/expressions"
	"github.com/rendis/flowgraph/internal/normalize"
	"github.com/rendis/flowgraph/pkg/schema"
)

// Tree is the built node tree of one workflow view. Root nodes form an
// ordered sequence bracketed by the start and end markers.
type Tree struct {
	mu      sync.RWMutex
	builder *Builder

	tasks           []schema.Task
	nodes           map[string]*Node
	roots           []string
	issues          *schema.ValidationResult
	reconciliations []normalize.Reconciliation
	version         uint64
}

// install replaces the tree content with res. With reuse, root subtrees
// whose task snapshot is unchanged since prev are kept as-is; every other node is
// built fresh and inherits Position and Status from the node that held its
// id before. Callers hold t.mu or own t exclusively.
func (t *Tree) install(res *normalize.Result, prev map[string]*Node, reuse bool) {
	issuesByID := make(map[string][]schema.ValidationIssue)
	for _, w := range res.Issues.Warnings {
		issuesByID[w.Path] = append(issuesByID[w.Path], w)
	}

	nodes := make(map[string]*Node, res.Len()+2)
	roots := make([]string, 0, len(res.Items)+2)

	start := prev[normalize.StartID]
	if start == nil {
		start = marker(normalize.StartID, normalize.KindStart, "Start")
	}
	nodes[start.ID] = start
	roots = append(roots, start.ID)

	reused, rebuilt := 0, 0
	for _, it := range res.Items {
		if old := prev[it.ID]; reuse && old != nil && sameRoot(old, it) {
			adopt(old, it, prev, nodes)
			reused++
		} else {
			fresh := make(map[string]*Node)
			t.builder.subtree(it, "", 0, issuesByID, fresh)
			for id, n := range fresh {
				if old := prev[id]; old != nil {
					n.Position = old.Position
					n.Status = old.Status
				}
				nodes[id] = n
			}
			rebuilt++
		}
		roots = append(roots, it.ID)
	}

	end := prev[normalize.EndID]
	if end == nil {
		end = marker(normalize.EndID, normalize.KindEnd, "End")
	}
	nodes[end.ID] = end
	roots = append(roots, end.ID)

	t.tasks = res.Tasks()
	t.nodes = nodes
	t.roots = roots
	t.reconciliations = res.Reconciliations
	t.issues = t.treeIssues(res)
	t.version++

	t.builder.logger.Debug("tree installed",
		"version", t.version, "nodes", len(nodes), "reused_roots", reused, "rebuilt_roots", rebuilt)
}

// sameRoot reports whether an old root node can stand in for item.
func sameRoot(old *Node, it *normalize.Item) bool {
	if old.ParentID != "" || old.Kind != it.Kind {
		return false
	}
	if !reflect.DeepEqual(old.Task, it.Task) {
		return false
	}
	return reflect.DeepEqual(old.Join, it.Join)
}

// adopt moves an unchanged subtree into nodes, refreshing task paths that
// shift when siblings are inserted or removed.
func adopt(old *Node, it *normalize.Item, prev, nodes map[string]*Node) {
	old.Path = it.Path
	nodes[old.ID] = old
	for i, childID := range old.Children {
		if i < len(it.Children) {
			if child := prev[childID]; child != nil {
				adopt(child, it.Children[i], prev, nodes)
			}
		}
	}
}

func (t *Tree) treeIssues(res *normalize.Result) *schema.ValidationResult {
	out := &schema.ValidationResult{}
	out.Merge(res.Issues)
	if v := t.builder.validator; v != nil {
		out.Merge(v.ValidateTasks(t.tasks))
	}

	known := make(map[string]bool, len(t.nodes))
	for _, n := range t.nodes {
		if ref := n.Ref(); ref != "" {
			known[ref] = true
		}
	}
	t.walkLocked(func(n *Node) bool {
		if n.Task == nil {
			return true
		}
		for _, ref := range expressions.TaskRefs(n.Task.InputParameters) {
			if !known[ref] {
				out.AddWarning(n.ID, schema.ErrCodeDanglingRef,
					fmt.Sprintf("input references unknown task %q", ref))
			}
		}
		// normalization issues are already merged above
		for _, is := range n.Issues {
			if is.Code == schema.ErrCodeInputSchema {
				out.Warnings = append(out.Warnings, is)
			}
		}
		return true
	})
	return out
}

// Node returns the node with the given id. The node is live: Status and
// Position change under concurrent binds and layouts, so read them through
// View or Walk.
func (t *Tree) Node(id string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	return n, ok
}

// View calls fn with the node under the read lock and reports whether the
// node exists. fn must not retain n or call back into t.
func (t *Tree) View(id string, fn func(n *Node)) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if ok {
		fn(n)
	}
	return ok
}

// Nodes returns every node depth-first, markers included.
func (t *Tree) Nodes() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Node, 0, len(t.nodes))
	t.walkLocked(func(n *Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Walk visits nodes depth-first under the read lock. Returning false skips
// the node's children.
func (t *Tree) Walk(fn func(n *Node) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.walkLocked(fn)
}

func (t *Tree) walkLocked(fn func(n *Node) bool) {
	var walk func(ids []string)
	walk = func(ids []string) {
		for _, id := range ids {
			n := t.nodes[id]
			if n == nil {
				continue
			}
			if fn(n) {
				walk(n.Children)
			}
		}
	}
	walk(t.roots)
}

// Roots returns the root sequence ids, markers included.
func (t *Tree) Roots() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.roots...)
}

// Tasks returns a copy of the healed task list the tree was built from.
func (t *Tree) Tasks() []schema.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := schema.CloneTasks(t.tasks)
	if out == nil {
		out = []schema.Task{}
	}
	return out
}

// Len returns the node count, markers included.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Depth returns the number of nesting levels.
func (t *Tree) Depth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	depth := 0
	for _, n := range t.nodes {
		if n.Depth+1 > depth {
			depth = n.Depth + 1
		}
	}
	return depth
}

// Issues returns the tree's warnings: normalization findings, structural
// schema findings, dangling task references and input schema violations.
func (t *Tree) Issues() *schema.ValidationResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := &schema.ValidationResult{}
	out.Merge(t.issues)
	return out
}

// Reconciliations returns the join corrections made by the last build.
func (t *Tree) Reconciliations() []normalize.Reconciliation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]normalize.Reconciliation(nil), t.reconciliations...)
}

// Version increments on every build or edit.
func (t *Tree) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// SetStatuses writes every node's status slot at once: nodes absent from
// statuses fall back to PENDING. It is the binder's only write path.
func (t *Tree) SetStatuses(statuses map[string]Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, n := range t.nodes {
		if s, ok := statuses[id]; ok {
			n.Status = s
			continue
		}
		n.Status = Status{State: StatePending}
	}
}

// SetPositions writes position slots. It is the layout's only write path.
func (t *Tree) SetPositions(positions map[string]Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range positions {
		if n, ok := t.nodes[id]; ok {
			n.Position = p
		}
	}
}

// Rebuild re-resolves every node against the current tool source, keeping
// positions and statuses.
func (t *Tree) Rebuild() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.install(t.builder.normalize(t.tasks), t.nodes, false)
}
