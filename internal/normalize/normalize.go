package normalize

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/rendis/flowgraph/internal/expressions"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/pkg/schema"
)

// Option configures a normalization pass.
type Option func(*normalizer)

// WithLogger sets the logger reconciliations are reported on.
func WithLogger(l *slog.Logger) Option {
	return func(n *normalizer) { n.logger = logging.OrNop(l) }
}

// WithCheckers enables expression compile checks.
func WithCheckers(c *expressions.Checkers) Option {
	return func(n *normalizer) { n.checkers = c }
}

// Result is the output of Normalize.
type Result struct {
	Items           []*Item
	Reconciliations []Reconciliation
	Issues          *schema.ValidationResult

	tasks []schema.Task
	index map[string]*Item
}

// Tasks returns a copy of the healed task list.
func (r *Result) Tasks() []schema.Task {
	out := schema.CloneTasks(r.tasks)
	if out == nil {
		out = []schema.Task{}
	}
	return out
}

// Item returns the item with the given id.
func (r *Result) Item(id string) (*Item, bool) {
	it, ok := r.index[id]
	return it, ok
}

// Len returns the number of items, synthetic ones included.
func (r *Result) Len() int {
	return len(r.index)
}

type normalizer struct {
	logger   *slog.Logger
	checkers *expressions.Checkers

	seen   map[string]bool
	result *Result
}

// Normalize classifies every task and builds the nested representation.
// Nothing is rejected: malformed tasks become KindUnsupported items and stale
// join selections are healed and reported as reconciliations.
func Normalize(tasks []schema.Task, opts ...Option) *Result {
	n := &normalizer{
		logger: logging.NewNop(),
		seen:   map[string]bool{StartID: true, EndID: true},
		result: &Result{
			Issues: &schema.ValidationResult{},
			index:  make(map[string]*Item),
		},
	}
	for _, opt := range opts {
		opt(n)
	}

	healed := schema.CloneTasks(tasks)
	n.healList(healed, RootPath)
	n.result.tasks = healed
	n.result.Items = n.list(healed, RootPath)
	return n.result
}

// healList reconciles every FORK_JOIN/JOIN pair in the list and its nested
// lists. It runs before items are built so snapshots carry healed values.
func (n *normalizer) healList(tasks []schema.Task, path string) {
	for i := range tasks {
		t := &tasks[i]
		p := IndexPath(path, i)
		switch t.Type {
		case schema.TaskTypeDoWhile:
			n.healList(t.LoopOver, LoopPath(p))
		case schema.TaskTypeSwitch, schema.TaskTypeDecision:
			for _, c := range t.DecisionCases {
				n.healList(c.Tasks, CasePath(p, c.Name))
			}
			n.healList(t.DefaultCase, DefaultCasePath(p))
		case schema.TaskTypeForkJoin:
			for b := range t.ForkTasks {
				n.healList(t.ForkTasks[b], BranchPath(p, b))
			}
			if i+1 < len(tasks) && tasks[i+1].Type == schema.TaskTypeJoin {
				n.healJoin(t, &tasks[i+1])
			} else {
				n.result.Issues.AddWarning(t.TaskReferenceName, schema.ErrCodeValidation, "FORK_JOIN is not followed by a JOIN")
			}
		case schema.TaskTypeJoin:
			if len(t.JoinBranches) == 0 {
				t.JoinBranches = nil
			}
		}
	}
}

func (n *normalizer) healJoin(fork, join *schema.Task) {
	count := len(fork.ForkTasks)
	before := join.JoinBranches
	after := ClampSelection(before, count)

	selected := after
	if selected == nil {
		selected = make([]int, count)
		for i := range selected {
			selected[i] = i
		}
	}
	var joinOn []string
	for _, b := range selected {
		if branch := fork.ForkTasks[b]; len(branch) > 0 {
			if ref := branch[len(branch)-1].TaskReferenceName; ref != "" {
				joinOn = append(joinOn, ref)
			}
		}
	}

	selectionChanged := len(before) > 0 && !slices.Equal(before, after)
	joinOnChanged := !slices.Equal(join.JoinOn, joinOn)
	join.JoinBranches = after
	if !selectionChanged && !joinOnChanged {
		return
	}

	rec := Reconciliation{
		JoinID:         join.TaskReferenceName,
		ForkID:         fork.TaskReferenceName,
		BranchCount:    count,
		BranchesBefore: before,
		BranchesAfter:  after,
		JoinOnBefore:   join.JoinOn,
		JoinOnAfter:    joinOn,
	}
	join.JoinOn = joinOn
	n.result.Reconciliations = append(n.result.Reconciliations, rec)
	n.logger.Warn("join selection reconciled",
		"join", rec.JoinID, "fork", rec.ForkID, "branches", count,
		"before", before, "after", after,
		"join_on_before", rec.JoinOnBefore, "join_on_after", joinOn)
	n.result.Issues.AddWarning(rec.JoinID, schema.ErrCodeReconciliation,
		fmt.Sprintf("join selection adjusted to fork %q with %d branches", rec.ForkID, count))
}

// ClampSelection keeps the indices in [0, n), deduplicated and sorted. An
// empty result or one covering every branch means "all branches" (nil).
func ClampSelection(sel []int, n int) []int {
	if len(sel) == 0 || n <= 0 {
		return nil
	}
	set := make(map[int]bool, len(sel))
	out := make([]int, 0, len(sel))
	for _, k := range sel {
		if k < 0 || k >= n || set[k] {
			continue
		}
		set[k] = true
		out = append(out, k)
	}
	if len(out) == 0 || len(out) == n {
		return nil
	}
	sort.Ints(out)
	return out
}

func (n *normalizer) list(tasks []schema.Task, path string) []*Item {
	items := make([]*Item, 0, len(tasks))
	for i := range tasks {
		p := IndexPath(path, i)
		var prev *schema.Task
		if i > 0 {
			prev = &tasks[i-1]
		}
		items = append(items, n.task(&tasks[i], prev, p))
	}
	return items
}

func (n *normalizer) task(t *schema.Task, prev *schema.Task, path string) *Item {
	if reason, keepRef := n.claim(t); reason != "" {
		return n.unsupported(t, path, reason, keepRef)
	}

	snap := t.Clone()
	it := &Item{ID: t.TaskReferenceName, Path: path, Task: &snap}

	switch {
	case t.Type.IsCall():
		it.Kind = KindTask
	case t.Type == schema.TaskTypeDoWhile:
		it.Kind = KindLoop
		it.Loop = n.loopMeta(&snap)
		it.Children = n.list(t.LoopOver, LoopPath(path))
	case t.Type == schema.TaskTypeSwitch || t.Type == schema.TaskTypeDecision:
		it.Kind = KindDecision
		it.Decision, it.Children = n.decision(t, path)
	case t.Type == schema.TaskTypeForkJoin:
		it.Kind = KindFork
		it.Children = n.fork(t, path)
	case t.Type == schema.TaskTypeJoin:
		it.Kind = KindJoin
		it.Join = &JoinMeta{Branches: snap.JoinBranches, JoinOn: snap.JoinOn}
		if prev != nil && prev.Type == schema.TaskTypeForkJoin {
			it.Join.ForkID = prev.TaskReferenceName
		} else {
			n.result.Issues.AddWarning(it.ID, schema.ErrCodeValidation, "JOIN does not follow a FORK_JOIN")
		}
	case t.Type == schema.TaskTypeSubWorkflow:
		p := t.SubWorkflowParam
		if p == nil || p.Name == "" {
			return n.unsupported(t, path, "SUB_WORKFLOW without subWorkflowParam.name", true)
		}
		it.Kind = KindSubWorkflow
		it.SubWorkflow = &SubWorkflowMeta{Name: p.Name, Pinned: p.Version != nil, Inline: p.WorkflowDefinition != nil}
		if p.Version != nil {
			it.SubWorkflow.Version = *p.Version
		}
	case t.Type == schema.TaskTypeTerminate:
		it.Kind = KindTerminate
		s := snap.TerminateSettings()
		it.Terminate = &TerminateMeta{Status: s.Status, Reason: s.Reason, Output: s.Output}
	default:
		// claim already rejected unknown types
		it.Kind = KindUnsupported
	}

	n.result.index[it.ID] = it
	return it
}

// claim validates the task's identity and registers its reference name. A
// non-empty reason makes the task opaque; keepRef reports whether the opaque
// item may still be addressed by its reference name.
func (n *normalizer) claim(t *schema.Task) (reason string, keepRef bool) {
	ref := t.TaskReferenceName
	switch {
	case ref == "":
		return "missing taskReferenceName", false
	case n.seen[ref]:
		return fmt.Sprintf("duplicate taskReferenceName %q", ref), false
	}
	n.seen[ref] = true
	if !knownType(t.Type) {
		return fmt.Sprintf("unrecognized task type %q", t.Type), true
	}
	return "", false
}

func knownType(t schema.TaskType) bool {
	if t.IsCall() || t.IsControl() {
		return true
	}
	return t == schema.TaskTypeSubWorkflow || t == schema.TaskTypeTerminate
}

func (n *normalizer) unsupported(t *schema.Task, path, reason string, keepRef bool) *Item {
	snap := t.Clone()
	id := t.TaskReferenceName
	if !keepRef {
		id = opaqueID(path)
		n.seen[id] = true
	}
	it := &Item{ID: id, Kind: KindUnsupported, Path: path, Task: &snap, Reason: reason}
	n.result.index[id] = it
	n.result.Issues.AddWarning(id, schema.ErrCodeUnsupported, reason)
	n.logger.Debug("task normalized as opaque leaf", "path", path, "reason", reason)
	return it
}

// synthetic registers a container id that has no engine task.
func (n *normalizer) synthetic(it *Item) *Item {
	if n.seen[it.ID] {
		n.result.Issues.AddWarning(it.ID, schema.ErrCodeConflict, "synthetic container id collides with a reference name")
	}
	n.seen[it.ID] = true
	n.result.index[it.ID] = it
	return it
}

func (n *normalizer) loopMeta(t *schema.Task) *LoopMeta {
	m := &LoopMeta{Condition: t.LoopCondition, EvaluatorType: t.EvaluatorType}
	s := t.LoopSettings()
	switch {
	case s.LoopCount != nil:
		m.Mode = LoopFixed
		switch c := s.LoopCount.(type) {
		case float64:
			m.Count = int(c)
		case int:
			m.Count = c
		case string:
			m.CountExpr = c
		}
	case s.Items != nil:
		m.Mode = LoopList
		m.Items = s.Items
	default:
		m.Mode = LoopExpression
	}
	if t.LoopCondition != "" {
		n.check(t, t.LoopCondition)
	}
	return m
}

func (n *normalizer) decision(t *schema.Task, path string) (*DecisionMeta, []*Item) {
	m := &DecisionMeta{EvaluatorType: t.EvaluatorType, Expression: t.Expression}
	if t.Type == schema.TaskTypeDecision && m.Expression == "" {
		m.Expression = t.CaseValueParam
		if m.EvaluatorType == "" {
			m.EvaluatorType = "value-param"
		}
	}

	switch m.EvaluatorType {
	case "value-param":
		if _, ok := t.InputParameters[m.Expression]; !ok {
			n.result.Issues.AddWarning(t.TaskReferenceName, schema.ErrCodeExpression,
				fmt.Sprintf("case value parameter %q is not an input parameter", m.Expression))
		}
	default:
		if m.Expression != "" {
			n.check(t, m.Expression)
		}
	}

	children := make([]*Item, 0, len(t.DecisionCases)+1)
	for _, c := range t.DecisionCases {
		m.Cases = append(m.Cases, c.Name)
		it := n.synthetic(&Item{
			ID:   CaseID(t.TaskReferenceName, c.Name),
			Kind: KindCase,
			Path: path,
			Case: &CaseMeta{Name: c.Name},
		})
		it.Children = n.list(c.Tasks, CasePath(path, c.Name))
		children = append(children, it)
	}
	def := n.synthetic(&Item{
		ID:   DefaultCaseID(t.TaskReferenceName),
		Kind: KindCase,
		Path: path,
		Case: &CaseMeta{Name: "default", Default: true},
	})
	def.Children = n.list(t.DefaultCase, DefaultCasePath(path))
	return m, append(children, def)
}

func (n *normalizer) fork(t *schema.Task, path string) []*Item {
	children := make([]*Item, 0, len(t.ForkTasks))
	for i, branch := range t.ForkTasks {
		it := n.synthetic(&Item{
			ID:     BranchID(t.TaskReferenceName, i),
			Kind:   KindBranch,
			Path:   path,
			Branch: &BranchMeta{Index: i},
		})
		it.Children = n.list(branch, BranchPath(path, i))
		children = append(children, it)
	}
	return children
}

func (n *normalizer) check(t *schema.Task, expression string) {
	vars := make([]string, 0, len(t.InputParameters))
	for k := range t.InputParameters {
		vars = append(vars, k)
	}
	sort.Strings(vars)
	if _, err := n.checkers.Check(t.EvaluatorType, expression, vars); err != nil {
		n.result.Issues.AddWarning(t.TaskReferenceName, schema.ErrCodeExpression, err.Error())
	}
}
