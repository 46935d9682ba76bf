package tree

import (
	"slices"
	"strings"

	"github.com/rendis/flowgraph/internal/normalize"
	"github.com/rendis/flowgraph/pkg/schema"
)

// moved marks the vacated slot of a task during Move until the sweep.
const moved schema.TaskType = "__moved__"

// slot addresses one task inside a task list.
type slot struct {
	list  *[]schema.Task
	index int
}

func (s slot) task() *schema.Task { return &(*s.list)[s.index] }

// edit runs fn on a copy of the task list and installs the result, reusing
// every root subtree fn left untouched.
func (t *Tree) edit(fn func(work *[]schema.Task) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	work := schema.CloneTasks(t.tasks)
	if work == nil {
		work = []schema.Task{}
	}
	if err := fn(&work); err != nil {
		return err
	}
	sweep(&work)
	t.install(t.builder.normalize(work), t.nodes, true)
	return nil
}

// Insert places task at index in the container's task list. An empty
// containerID or the start marker addresses the root sequence; loops, decision
// cases and fork branches hold children.
func (t *Tree) Insert(containerID string, index int, task schema.Task) error {
	if task.TaskReferenceName == "" {
		return schema.NewError(schema.ErrCodeInvalidEdit, "task has no taskReferenceName")
	}
	return t.edit(func(work *[]schema.Task) error {
		if err := checkRefs(*work, []schema.Task{task}); err != nil {
			return err
		}
		list, err := t.containerList(work, containerID)
		if err != nil {
			return err
		}
		if index < 0 || index > len(*list) {
			return schema.NewErrorf(schema.ErrCodeInvalidEdit,
				"index %d out of range [0,%d]", index, len(*list)).WithNode(containerID)
		}
		*list = slices.Insert(*list, index, task.Clone())
		return nil
	})
}

// Delete removes a task with its subtree, a decision case or a fork branch.
// Deleting a fork also deletes the JOIN that closes it; deleting a branch
// renumbers that JOIN's selection.
func (t *Tree) Delete(id string) error {
	return t.edit(func(work *[]schema.Task) error {
		n, ok := t.nodes[id]
		if !ok {
			return schema.NewError(schema.ErrCodeNotFound, "no such node").WithNode(id)
		}
		switch n.Kind {
		case normalize.KindStart, normalize.KindEnd:
			return schema.NewError(schema.ErrCodeInvalidEdit, "markers cannot be deleted").WithNode(id)
		case normalize.KindCase:
			if n.Case.Default {
				return schema.NewError(schema.ErrCodeInvalidEdit, "the default case cannot be deleted").WithNode(id)
			}
			s, err := t.taskSlot(work, n.Path, id)
			if err != nil {
				return err
			}
			owner := s.task()
			if i := owner.DecisionCases.Index(n.Case.Name); i >= 0 {
				owner.DecisionCases = slices.Delete(owner.DecisionCases, i, i+1)
			}
			return nil
		case normalize.KindBranch:
			s, err := t.taskSlot(work, n.Path, id)
			if err != nil {
				return err
			}
			i := n.Branch.Index
			owner := s.task()
			if i >= len(owner.ForkTasks) {
				return schema.NewError(schema.ErrCodeNotFound, "branch no longer exists").WithNode(id)
			}
			owner.ForkTasks = slices.Delete(owner.ForkTasks, i, i+1)
			if join := followingJoin(s); join != nil {
				join.JoinBranches = dropBranch(join.JoinBranches, i)
			}
			return nil
		}
		s, err := t.taskSlot(work, n.Path, id)
		if err != nil {
			return err
		}
		end := s.index + 1
		if s.task().Type == schema.TaskTypeForkJoin && followingJoin(s) != nil {
			end++
		}
		*s.list = slices.Delete(*s.list, s.index, end)
		return nil
	})
}

// Move relocates a task with its subtree; a fork travels with its closing
// JOIN. index counts positions in the destination list as it is once the
// task has been taken out.
func (t *Tree) Move(id, containerID string, index int) error {
	return t.edit(func(work *[]schema.Task) error {
		n, ok := t.nodes[id]
		if !ok {
			return schema.NewError(schema.ErrCodeNotFound, "no such node").WithNode(id)
		}
		if n.Task == nil {
			return schema.NewError(schema.ErrCodeInvalidEdit, "only tasks can be moved").WithNode(id)
		}
		for cur := containerID; cur != ""; {
			if cur == id {
				return schema.NewError(schema.ErrCodeInvalidEdit, "cannot move a task into itself").WithNode(id)
			}
			p, ok := t.nodes[cur]
			if !ok {
				break
			}
			cur = p.ParentID
		}

		src, err := t.taskSlot(work, n.Path, id)
		if err != nil {
			return err
		}
		end := src.index + 1
		if src.task().Type == schema.TaskTypeForkJoin && followingJoin(src) != nil {
			end++
		}
		taken := schema.CloneTasks((*src.list)[src.index:end])
		// slots stay until the sweep so sibling paths keep resolving
		for i := src.index; i < end; i++ {
			(*src.list)[i] = schema.Task{Type: moved}
		}

		dst, err := t.containerList(work, containerID)
		if err != nil {
			return err
		}
		pos, ok := physicalIndex(*dst, index)
		if !ok {
			return schema.NewErrorf(schema.ErrCodeInvalidEdit, "index %d out of range", index).WithNode(containerID)
		}
		*dst = slices.Insert(*dst, pos, taken...)
		return nil
	})
}

// WrapInLoop replaces a task with loop, a DO_WHILE whose body is the task.
// A fork is wrapped together with its closing JOIN.
func (t *Tree) WrapInLoop(id string, loop schema.Task) error {
	if loop.Type == "" {
		loop.Type = schema.TaskTypeDoWhile
	}
	if loop.Type != schema.TaskTypeDoWhile {
		return schema.NewErrorf(schema.ErrCodeInvalidEdit, "wrapper must be %s, got %s", schema.TaskTypeDoWhile, loop.Type)
	}
	if loop.TaskReferenceName == "" {
		return schema.NewError(schema.ErrCodeInvalidEdit, "loop has no taskReferenceName")
	}
	if loop.Name == "" {
		loop.Name = string(schema.TaskTypeDoWhile)
	}
	return t.edit(func(work *[]schema.Task) error {
		wrapper := loop.Clone()
		wrapper.LoopOver = nil
		if err := checkRefs(*work, []schema.Task{wrapper}); err != nil {
			return err
		}
		n, ok := t.nodes[id]
		if !ok {
			return schema.NewError(schema.ErrCodeNotFound, "no such node").WithNode(id)
		}
		if n.Task == nil {
			return schema.NewError(schema.ErrCodeInvalidEdit, "only tasks can be wrapped").WithNode(id)
		}
		s, err := t.taskSlot(work, n.Path, id)
		if err != nil {
			return err
		}
		end := s.index + 1
		if s.task().Type == schema.TaskTypeForkJoin && followingJoin(s) != nil {
			end++
		}
		wrapper.LoopOver = append([]schema.Task(nil), (*s.list)[s.index:end]...)
		*s.list = slices.Replace(*s.list, s.index, end, wrapper)
		return nil
	})
}

// AddBranch appends an empty branch to a fork and returns its node id.
func (t *Tree) AddBranch(forkID string) (string, error) {
	var added string
	err := t.edit(func(work *[]schema.Task) error {
		n, ok := t.nodes[forkID]
		if !ok {
			return schema.NewError(schema.ErrCodeNotFound, "no such node").WithNode(forkID)
		}
		if n.Kind != normalize.KindFork {
			return schema.NewErrorf(schema.ErrCodeInvalidEdit, "node is a %s, not a fork", n.Kind).WithNode(forkID)
		}
		s, err := t.taskSlot(work, n.Path, forkID)
		if err != nil {
			return err
		}
		owner := s.task()
		owner.ForkTasks = append(owner.ForkTasks, []schema.Task{})
		added = normalize.BranchID(n.ID, len(owner.ForkTasks)-1)
		return nil
	})
	if err != nil {
		return "", err
	}
	return added, nil
}

// AddCase appends an empty named case to a decision and returns its node id.
func (t *Tree) AddCase(decisionID, name string) (string, error) {
	if name == "" {
		return "", schema.NewError(schema.ErrCodeInvalidEdit, "case name is empty").WithNode(decisionID)
	}
	var added string
	err := t.edit(func(work *[]schema.Task) error {
		n, ok := t.nodes[decisionID]
		if !ok {
			return schema.NewError(schema.ErrCodeNotFound, "no such node").WithNode(decisionID)
		}
		if n.Kind != normalize.KindDecision {
			return schema.NewErrorf(schema.ErrCodeInvalidEdit, "node is a %s, not a decision", n.Kind).WithNode(decisionID)
		}
		s, err := t.taskSlot(work, n.Path, decisionID)
		if err != nil {
			return err
		}
		owner := s.task()
		if owner.DecisionCases.Index(name) >= 0 {
			return schema.NewErrorf(schema.ErrCodeConflict, "case %q already exists", name).WithNode(decisionID)
		}
		owner.DecisionCases = append(owner.DecisionCases, schema.DecisionCase{Name: name, Tasks: []schema.Task{}})
		added = normalize.CaseID(n.ID, name)
		return nil
	})
	if err != nil {
		return "", err
	}
	return added, nil
}

// containerList resolves the task list a container node holds.
func (t *Tree) containerList(work *[]schema.Task, id string) (*[]schema.Task, error) {
	if id == "" || id == normalize.StartID {
		return work, nil
	}
	n, ok := t.nodes[id]
	if !ok {
		return nil, schema.NewError(schema.ErrCodeNotFound, "no such container").WithNode(id)
	}
	switch n.Kind {
	case normalize.KindLoop, normalize.KindCase, normalize.KindBranch:
	default:
		return nil, schema.NewErrorf(schema.ErrCodeInvalidEdit, "a %s node cannot hold tasks", n.Kind).WithNode(id)
	}
	s, err := t.taskSlot(work, n.Path, id)
	if err != nil {
		return nil, err
	}
	owner := s.task()
	switch n.Kind {
	case normalize.KindLoop:
		return &owner.LoopOver, nil
	case normalize.KindCase:
		if n.Case.Default {
			return &owner.DefaultCase, nil
		}
		if i := owner.DecisionCases.Index(n.Case.Name); i >= 0 {
			return &owner.DecisionCases[i].Tasks, nil
		}
	case normalize.KindBranch:
		if n.Branch.Index < len(owner.ForkTasks) {
			return &owner.ForkTasks[n.Branch.Index], nil
		}
	}
	return nil, schema.NewError(schema.ErrCodeNotFound, "container no longer exists").WithNode(id)
}

func (t *Tree) taskSlot(work *[]schema.Task, path, id string) (slot, error) {
	s, ok := locate(work, normalize.RootPath, path)
	if !ok {
		return slot{}, schema.NewErrorf(schema.ErrCodeNotFound, "task path %s not found", path).WithNode(id)
	}
	return s, nil
}

// locate finds the task at path by regenerating the normalizer's paths.
func locate(list *[]schema.Task, prefix, path string) (slot, bool) {
	for i := range *list {
		p := normalize.IndexPath(prefix, i)
		if p == path {
			return slot{list: list, index: i}, true
		}
		if !strings.HasPrefix(path, p+".") {
			continue
		}
		t := &(*list)[i]
		switch t.Type {
		case schema.TaskTypeDoWhile:
			return locate(&t.LoopOver, normalize.LoopPath(p), path)
		case schema.TaskTypeSwitch, schema.TaskTypeDecision:
			for c := range t.DecisionCases {
				if s, ok := locate(&t.DecisionCases[c].Tasks, normalize.CasePath(p, t.DecisionCases[c].Name), path); ok {
					return s, true
				}
			}
			return locate(&t.DefaultCase, normalize.DefaultCasePath(p), path)
		case schema.TaskTypeForkJoin:
			for b := range t.ForkTasks {
				if s, ok := locate(&t.ForkTasks[b], normalize.BranchPath(p, b), path); ok {
					return s, true
				}
			}
		}
		return slot{}, false
	}
	return slot{}, false
}

// followingJoin returns the JOIN directly after the fork at s, if any.
func followingJoin(s slot) *schema.Task {
	if next := s.index + 1; next < len(*s.list) && (*s.list)[next].Type == schema.TaskTypeJoin {
		return &(*s.list)[next]
	}
	return nil
}

// dropBranch removes branch i from a join selection and shifts the indexes
// above it down. A selection that empties means all branches.
func dropBranch(sel []int, i int) []int {
	if sel == nil {
		return nil
	}
	out := make([]int, 0, len(sel))
	for _, b := range sel {
		switch {
		case b == i:
		case b > i:
			out = append(out, b-1)
		default:
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// physicalIndex maps a position among live tasks to a slice position,
// skipping vacated slots.
func physicalIndex(list []schema.Task, index int) (int, bool) {
	if index < 0 {
		return 0, false
	}
	live := 0
	for i := range list {
		if list[i].Type == moved {
			continue
		}
		if live == index {
			return i, true
		}
		live++
	}
	if live == index {
		return len(list), true
	}
	return 0, false
}

// sweep drops vacated slots left by Move.
func sweep(list *[]schema.Task) {
	*list = slices.DeleteFunc(*list, func(t schema.Task) bool { return t.Type == moved })
	for i := range *list {
		t := &(*list)[i]
		sweep(&t.LoopOver)
		sweep(&t.DefaultCase)
		for c := range t.DecisionCases {
			sweep(&t.DecisionCases[c].Tasks)
		}
		for b := range t.ForkTasks {
			sweep(&t.ForkTasks[b])
		}
	}
}

// checkRefs rejects added tasks whose reference names collide with each
// other or with the existing list.
func checkRefs(existing, added []schema.Task) error {
	seen := make(map[string]bool)
	collectRefs(existing, seen)
	var dup string
	walkRefs(added, func(ref string) bool {
		if seen[ref] {
			dup = ref
			return false
		}
		seen[ref] = true
		return true
	})
	if dup != "" {
		return schema.NewErrorf(schema.ErrCodeConflict, "taskReferenceName %q already in use", dup).WithNode(dup)
	}
	return nil
}

// walkRefs calls fn with each non-empty reference name depth-first until fn
// returns false.
func walkRefs(tasks []schema.Task, fn func(ref string) bool) bool {
	for _, t := range tasks {
		if t.TaskReferenceName != "" && !fn(t.TaskReferenceName) {
			return false
		}
		if !walkRefs(t.LoopOver, fn) || !walkRefs(t.DefaultCase, fn) {
			return false
		}
		for _, c := range t.DecisionCases {
			if !walkRefs(c.Tasks, fn) {
				return false
			}
		}
		for _, b := range t.ForkTasks {
			if !walkRefs(b, fn) {
				return false
			}
		}
	}
	return true
}

func collectRefs(tasks []schema.Task, seen map[string]bool) {
	walkRefs(tasks, func(ref string) bool {
		seen[ref] = true
		return true
	})
	seen[normalize.StartID] = true
	seen[normalize.EndID] = true
}
