package binder

import (
	"slices"
	"strconv"
	"strings"

	"github.com/rendis/flowgraph/internal/normalize"
	"github.com/rendis/flowgraph/internal/tree"
	"github.com/rendis/flowgraph/pkg/schema"
)

// StateOf maps an engine task status to a display state.
func StateOf(s schema.TaskStatus) tree.State {
	switch s {
	case schema.TaskStatusScheduled:
		return tree.StateScheduled
	case schema.TaskStatusInProgress:
		return tree.StateRunning
	case schema.TaskStatusCompleted, schema.TaskStatusCompletedWithErrors:
		return tree.StateCompleted
	case schema.TaskStatusFailed, schema.TaskStatusFailedWithTerminalError, schema.TaskStatusTimedOut:
		return tree.StateFailed
	case schema.TaskStatusSkipped:
		return tree.StateSkipped
	case schema.TaskStatusCanceled:
		return tree.StateCanceled
	default:
		return tree.StatePending
	}
}

// BaseRef folds a loop iteration suffix ("ref__3") onto the base reference.
func BaseRef(ref string) string {
	i := strings.LastIndex(ref, "__")
	if i <= 0 || i+2 == len(ref) {
		return ref
	}
	if _, err := strconv.Atoi(ref[i+2:]); err != nil {
		return ref
	}
	return ref[:i]
}

// view is the part of a node the aggregation reads, copied under the tree's
// read lock.
type view struct {
	id        string
	kind      normalize.Kind
	ref       string
	children  []string
	caseName  string
	isDefault bool
}

type snapshot struct {
	views map[string]*view
	roots []string
	byRef map[string]string
}

func snapshotOf(tr *tree.Tree) *snapshot {
	s := &snapshot{views: make(map[string]*view), byRef: make(map[string]string)}
	tr.Walk(func(n *tree.Node) bool {
		v := &view{id: n.ID, kind: n.Kind, ref: n.Ref(), children: append([]string(nil), n.Children...)}
		if n.Case != nil {
			v.caseName = n.Case.Name
			v.isDefault = n.Case.Default
		}
		s.views[n.ID] = v
		// opaque nodes with derived ids cannot be addressed by the engine
		if v.ref != "" && v.ref == n.ID {
			s.byRef[v.ref] = n.ID
		}
		return true
	})
	s.roots = tr.Roots()
	return s
}

// entrySet is the folded record entries of one node.
type entrySet struct {
	latest     *schema.TaskExecution
	iterations int
	suffixes   int
}

// binding is the outcome of one aggregation pass.
type binding struct {
	statuses  map[string]tree.Status
	matched   int
	unmatched []string
	derived   int
}

// compute derives every node status from rec. It does not touch the tree.
func compute(s *snapshot, rec *schema.Execution) *binding {
	b := &binding{statuses: make(map[string]tree.Status, len(s.views))}
	entries := make(map[string]*entrySet)

	for i := range rec.Tasks {
		te := &rec.Tasks[i]
		id, suffixed := s.lookup(te.ReferenceTaskName)
		if id == "" {
			b.unmatched = append(b.unmatched, te.ReferenceTaskName)
			continue
		}
		es := entries[id]
		if es == nil {
			es = &entrySet{}
			entries[id] = es
		}
		if suffixed {
			es.suffixes++
		}
		if te.Iteration > es.iterations {
			es.iterations = te.Iteration
		}
		// later entries win within the same iteration
		if es.latest == nil || te.Iteration >= es.latest.Iteration {
			es.latest = te
		}
	}
	slices.Sort(b.unmatched)
	b.unmatched = slices.Compact(b.unmatched)

	// visit returns the node state and whether it takes part in its
	// parent's aggregation. Cases and branches with nothing bindable below
	// them are vacuous and left out.
	var visit func(id string) (tree.State, bool)
	visit = func(id string) (tree.State, bool) {
		v := s.views[id]
		if v == nil {
			return tree.StatePending, true
		}
		es := entries[id]
		if es != nil {
			b.matched++
		}
		if !v.kind.IsContainer() {
			st := leafStatus(es)
			b.statuses[id] = st
			return st.State, true
		}

		relevant := v.children
		if v.kind == normalize.KindDecision {
			relevant = takenCases(s, v, es, entries)
		}
		var states []tree.State
		counted := 0
		for _, child := range v.children {
			st, counts := visit(child)
			if !counts {
				continue
			}
			counted++
			if slices.Contains(relevant, child) {
				states = append(states, st)
			}
		}
		st := leafStatus(es)
		st.State = aggregate(states, st.State)
		st.Derived = true
		if v.kind == normalize.KindLoop && es == nil {
			st.Iterations = maxIterations(s, v, entries)
		}
		b.statuses[id] = st
		b.derived++
		vacuous := counted == 0 && es == nil && v.kind.IsSynthetic()
		return st.State, !vacuous
	}
	for _, id := range s.roots {
		switch id {
		case normalize.StartID:
			b.statuses[id] = tree.Status{State: tree.StateCompleted, StartTime: rec.StartTime, Derived: true}
		case normalize.EndID:
			b.statuses[id] = tree.Status{
				State: endState(rec.Status), EndTime: rec.EndTime,
				Reason: rec.ReasonForIncompletion, Output: rec.Output, Derived: true,
			}
		default:
			_, _ = visit(id)
		}
	}
	return b
}

// lookup resolves a record reference to a node id, folding loop suffixes
// when the literal reference is unknown.
func (s *snapshot) lookup(ref string) (string, bool) {
	if id, ok := s.byRef[ref]; ok {
		return id, false
	}
	if base := BaseRef(ref); base != ref {
		if id, ok := s.byRef[base]; ok {
			return id, true
		}
	}
	return "", false
}

func leafStatus(es *entrySet) tree.Status {
	if es == nil || es.latest == nil {
		return tree.Status{State: tree.StatePending}
	}
	te := es.latest
	iterations := es.iterations
	if es.suffixes > iterations {
		iterations = es.suffixes
	}
	return tree.Status{
		State:          StateOf(te.Status),
		TaskStatus:     te.Status,
		TaskID:         te.TaskID,
		StartTime:      te.StartTime,
		EndTime:        te.EndTime,
		Iterations:     iterations,
		RetryCount:     te.RetryCount,
		Reason:         te.ReasonForIncompletion,
		Input:          te.InputData,
		Output:         te.OutputData,
		ExternalInput:  te.ExternalInputPayloadStoragePath,
		ExternalOutput: te.ExternalOutputPayloadStoragePath,
	}
}

// aggregate folds the states of a container's relevant children. own is the
// container's state from its own record entry, used only when nothing below
// it is bound.
func aggregate(states []tree.State, own tree.State) tree.State {
	var failed, active, successful, pending int
	for _, st := range states {
		switch {
		case st == tree.StateFailed:
			failed++
		case st.Active():
			active++
		case st.Successful():
			successful++
		case st == tree.StateCanceled:
		default:
			pending++
		}
	}
	switch {
	case failed > 0:
		return tree.StateFailed
	case active > 0:
		return tree.StateRunning
	case len(states) > 0 && successful == len(states):
		return tree.StateCompleted
	case len(states) > 0 && pending == 0:
		return tree.StateCanceled
	case pending < len(states):
		return tree.StateRunning
	}
	return own
}

// takenCases returns the case ids a decision routed to. The decision's own
// output names the case when present; otherwise any case with bound
// descendants counts as taken.
func takenCases(s *snapshot, v *view, es *entrySet, entries map[string]*entrySet) []string {
	if es != nil && es.latest != nil {
		if names := caseOutput(es.latest.OutputData); len(names) > 0 {
			var taken []string
			var def string
			for _, id := range v.children {
				c := s.views[id]
				switch {
				case c == nil:
				case c.isDefault:
					def = id
				case slices.Contains(names, c.caseName):
					taken = append(taken, id)
				}
			}
			if len(taken) == 0 && def != "" {
				taken = append(taken, def)
			}
			return taken
		}
	}
	var taken []string
	for _, id := range v.children {
		if anyBound(s, id, entries) {
			taken = append(taken, id)
		}
	}
	return taken
}

func caseOutput(out map[string]any) []string {
	for _, key := range []string{"evaluationResult", "caseOutput"} {
		raw, ok := out[key]
		if !ok {
			continue
		}
		var names []string
		switch v := raw.(type) {
		case []any:
			for _, x := range v {
				if s, ok := x.(string); ok {
					names = append(names, s)
				}
			}
		case []string:
			names = v
		case string:
			names = []string{v}
		}
		if len(names) > 0 {
			return names
		}
	}
	return nil
}

func anyBound(s *snapshot, id string, entries map[string]*entrySet) bool {
	if entries[id] != nil {
		return true
	}
	v := s.views[id]
	if v == nil {
		return false
	}
	for _, child := range v.children {
		if anyBound(s, child, entries) {
			return true
		}
	}
	return false
}

func maxIterations(s *snapshot, v *view, entries map[string]*entrySet) int {
	n := 0
	for _, child := range v.children {
		if es := entries[child]; es != nil {
			it := max(es.iterations, es.suffixes)
			n = max(n, it)
		}
		if c := s.views[child]; c != nil && c.kind.IsContainer() {
			n = max(n, maxIterations(s, c, entries))
		}
	}
	return n
}

func endState(s schema.WorkflowStatus) tree.State {
	switch s {
	case schema.WorkflowStatusCompleted:
		return tree.StateCompleted
	case schema.WorkflowStatusFailed, schema.WorkflowStatusTimedOut:
		return tree.StateFailed
	case schema.WorkflowStatusTerminated:
		return tree.StateCanceled
	default:
		return tree.StatePending
	}
}
