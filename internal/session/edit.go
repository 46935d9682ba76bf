package session

import (
	"context"

	"github.com/rendis/flowgraph/internal/streaming"
	"github.com/rendis/flowgraph/internal/tree"
	"github.com/rendis/flowgraph/pkg/schema"
)

// Insert adds task to a container; see tree.Tree.Insert.
func (s *Session) Insert(ctx context.Context, containerID string, index int, task schema.Task) error {
	return s.edit(ctx, func(tr *tree.Tree) error { return tr.Insert(containerID, index, task) })
}

// Delete removes a task, decision case or fork branch.
func (s *Session) Delete(ctx context.Context, id string) error {
	return s.edit(ctx, func(tr *tree.Tree) error { return tr.Delete(id) })
}

// Move relocates a task.
func (s *Session) Move(ctx context.Context, id, containerID string, index int) error {
	return s.edit(ctx, func(tr *tree.Tree) error { return tr.Move(id, containerID, index) })
}

// WrapInLoop wraps a task in a new DO_WHILE.
func (s *Session) WrapInLoop(ctx context.Context, id string, loop schema.Task) error {
	return s.edit(ctx, func(tr *tree.Tree) error { return tr.WrapInLoop(id, loop) })
}

// AddBranch appends an empty fork branch and returns its node id.
func (s *Session) AddBranch(ctx context.Context, forkID string) (string, error) {
	var id string
	err := s.edit(ctx, func(tr *tree.Tree) error {
		var err error
		id, err = tr.AddBranch(forkID)
		return err
	})
	return id, err
}

// AddCase appends an empty decision case and returns its node id.
func (s *Session) AddCase(ctx context.Context, decisionID, name string) (string, error) {
	var id string
	err := s.edit(ctx, func(tr *tree.Tree) error {
		var err error
		id, err = tr.AddCase(decisionID, name)
		return err
	})
	return id, err
}

func (s *Session) edit(ctx context.Context, fn func(tr *tree.Tree) error) error {
	tr := s.Tree()
	if err := fn(tr); err != nil {
		return err
	}
	s.afterEdit(ctx, tr)
	return nil
}

// afterEdit rebinds the current record so statuses survive the rebuild.
func (s *Session) afterEdit(ctx context.Context, tr *tree.Tree) {
	s.observeBuild(tr)
	if sum, ok := s.binder.Rebind(tr); ok {
		s.logger.Debug("rebound after edit", "matched", sum.Matched, "unmatched", sum.Unmatched)
	}
	s.publish(ctx, streaming.StreamEvent{EventType: streaming.EventTreeChanged, Payload: map[string]any{"version": tr.Version()}})
}
