// Package session wires the catalog, tree builder, binder and layout into
// one open workflow view.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/rendis/flowgraph/internal/binder"
	"github.com/rendis/flowgraph/internal/catalog"
	"github.com/rendis/flowgraph/internal/expressions"
	"github.com/rendis/flowgraph/internal/layout"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/internal/metrics"
	"github.com/rendis/flowgraph/internal/streaming"
	"github.com/rendis/flowgraph/internal/tree"
	"github.com/rendis/flowgraph/internal/validation"
	"github.com/rendis/flowgraph/pkg/schema"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = logging.OrNop(l) }
}

// WithValidator enables structural and tool input schema checks.
func WithValidator(v validation.Validator) Option {
	return func(s *Session) { s.validator = v }
}

// WithCheckers enables expression compile checks.
func WithCheckers(c *expressions.Checkers) Option {
	return func(s *Session) { s.checkers = c }
}

// WithMetrics records builds and binds.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithHub publishes status and tree changes.
func WithHub(h streaming.EventHub) Option {
	return func(s *Session) { s.hub = h }
}

// WithLayout sets the render direction and density used by Layout.
func WithLayout(d layout.Direction, density layout.Density) Option {
	return func(s *Session) {
		s.direction = d
		s.density = density
	}
}

// Session is one open workflow view. Structural edits are expected to come
// from a single owner; binds may overlap them.
type Session struct {
	id        string
	catalog   *catalog.Catalog
	validator validation.Validator
	checkers  *expressions.Checkers
	metrics   *metrics.Metrics
	hub       streaming.EventHub
	logger    *slog.Logger
	direction layout.Direction
	density   layout.Density

	builder *tree.Builder
	binder  *binder.Binder

	mu         sync.RWMutex
	tree       *tree.Tree
	definition schema.WorkflowDefinition
	generation uint64
}

// New opens an empty view resolving tools from cat.
func New(cat *catalog.Catalog, opts ...Option) *Session {
	s := &Session{
		id:        uuid.New().String(),
		catalog:   cat,
		logger:    logging.NewNop(),
		direction: layout.DirectionTB,
		density:   layout.DensityComplicated,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)

	bopts := []binder.Option{binder.WithLogger(s.logger)}
	if s.metrics != nil {
		bopts = append(bopts, binder.WithObserver(s.metrics))
	}
	s.binder = binder.New(bopts...)

	topts := []tree.Option{tree.WithLogger(s.logger), tree.WithCheckers(s.checkers)}
	if s.validator != nil {
		topts = append(topts, tree.WithValidator(s.validator))
	}
	s.builder = tree.NewBuilder(cat, topts...)
	s.tree = s.builder.Build(nil)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Catalog returns the tool catalog the view resolves against.
func (s *Session) Catalog() *catalog.Catalog { return s.catalog }

// Tree returns the current node tree.
func (s *Session) Tree() *tree.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

// Definition returns the loaded workflow definition with its healed tasks.
func (s *Session) Definition() schema.WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def := s.definition
	def.Tasks = s.tree.Tasks()
	return def
}

// Binder returns the view's execution binder.
func (s *Session) Binder() *binder.Binder { return s.binder }

// Load replaces the view with a fresh tree of def and drops any binding.
func (s *Session) Load(ctx context.Context, def schema.WorkflowDefinition) *tree.Tree {
	tr := s.builder.Build(def.Tasks)

	s.mu.Lock()
	old := s.tree
	s.tree = tr
	s.definition = def
	s.definition.Tasks = nil
	s.generation = s.catalogGeneration()
	s.mu.Unlock()

	s.binder.Unbind(old)
	s.observeBuild(tr)
	logging.LogWith(ctx, s.logger).Info("workflow loaded",
		"workflow", def.Name, "version", def.Version, "nodes", tr.Len(), "issues", len(tr.Issues().Warnings))
	s.publish(ctx, streaming.StreamEvent{EventType: streaming.EventTreeChanged, Payload: map[string]any{"version": tr.Version()}})
	return tr
}

// Bind overlays rec onto the current tree.
func (s *Session) Bind(ctx context.Context, rec *schema.Execution) binder.Summary {
	return s.bind(ctx, rec, false)
}

// SwapInstance discards the current binding and binds rec.
func (s *Session) SwapInstance(ctx context.Context, rec *schema.Execution) binder.Summary {
	return s.bind(ctx, rec, true)
}

// Unbind resets every node to PENDING.
func (s *Session) Unbind() {
	s.binder.Unbind(s.Tree())
}

func (s *Session) bind(ctx context.Context, rec *schema.Execution, swap bool) binder.Summary {
	tr := s.Tree()
	before := stateSnapshot(tr)
	prevStatus := s.binder.WorkflowStatus()

	var sum binder.Summary
	if swap {
		sum = s.binder.SwapInstance(tr, rec)
	} else {
		sum = s.binder.Bind(tr, rec)
	}

	if rec != nil {
		ctx = logging.WithWorkflowID(ctx, rec.WorkflowID)
	}
	s.publishChanges(ctx, tr, before, sum)
	if sum.WorkflowStatus != prevStatus || sum.Swapped {
		s.publish(ctx, streaming.StreamEvent{
			WorkflowID: sum.WorkflowID,
			EventType:  streaming.EventWorkflowStatus,
			Payload:    map[string]any{"status": sum.WorkflowStatus, "binding_id": sum.BindingID},
		})
	}
	return sum
}

// Refresh rebuilds the tree when the catalog changed since the last build,
// so unsupported flags and tool metadata follow late catalog sources.
// It reports whether a rebuild happened.
func (s *Session) Refresh(ctx context.Context) bool {
	gen := s.catalogGeneration()
	s.mu.Lock()
	if gen == s.generation {
		s.mu.Unlock()
		return false
	}
	s.generation = gen
	tr := s.tree
	s.mu.Unlock()

	tr.Rebuild()
	s.afterEdit(ctx, tr)
	return true
}

func (s *Session) catalogGeneration() uint64 {
	if s.catalog == nil {
		return 0
	}
	return s.catalog.Generation()
}

// GetTool looks a tool up by name, or by the value at a property path.
func (s *Session) GetTool(value string, path ...string) (schema.ToolDefinition, bool) {
	if s.catalog == nil {
		return schema.ToolDefinition{}, false
	}
	return s.catalog.GetTool(value, path...)
}

// Layout arranges the nodes and returns the canvas transform for a
// container of the given size.
func (s *Session) Layout(width, height float64) (layout.Result, layout.Extent) {
	e := layout.Arrange(s.Tree(), s.direction, s.density)
	return layout.Estimate(e.Params(width, height, s.direction, s.density)), e
}

// Issues returns the current tree warnings.
func (s *Session) Issues() *schema.ValidationResult {
	return s.Tree().Issues()
}

func (s *Session) observeBuild(tr *tree.Tree) {
	if s.metrics != nil {
		s.metrics.ObserveBuild(tr.Len(), len(tr.Reconciliations()))
	}
}

func (s *Session) publish(ctx context.Context, e streaming.StreamEvent) {
	if s.hub == nil {
		return
	}
	e.SessionID = s.id
	if err := s.hub.Publish(ctx, e); err != nil {
		s.logger.Debug("publish dropped", "event_type", e.EventType, "error", err)
	}
}

func (s *Session) publishChanges(ctx context.Context, tr *tree.Tree, before map[string]tree.State, sum binder.Summary) {
	if s.hub == nil {
		return
	}
	tr.Walk(func(n *tree.Node) bool {
		if prev, ok := before[n.ID]; !ok || prev != n.Status.State {
			s.publish(ctx, streaming.StreamEvent{
				WorkflowID: sum.WorkflowID,
				NodeID:     n.ID,
				EventType:  streaming.EventNodeStatus,
				Payload:    map[string]any{"from": prev, "to": n.Status.State},
			})
		}
		return true
	})
}

func stateSnapshot(tr *tree.Tree) map[string]tree.State {
	out := make(map[string]tree.State)
	tr.Walk(func(n *tree.Node) bool {
		out[n.ID] = n.Status.State
		return true
	})
	return out
}
