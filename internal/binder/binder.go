// Package binder overlays a polled execution record onto a node tree.
package binder

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/internal/tree"
	"github.com/rendis/flowgraph/pkg/schema"
)

// State is the binder lifecycle state.
type State string

const (
	StateUnbound State = "unbound"
	StateSyncing State = "syncing"
	StateBound   State = "bound"
)

// validTransitions lists the allowed binder state changes.
var validTransitions = map[State][]State{
	StateUnbound: {StateSyncing},
	StateSyncing: {StateBound, StateUnbound},
	StateBound:   {StateSyncing, StateUnbound},
}

// Summary reports the outcome of one bind.
type Summary struct {
	BindingID      string                `json:"binding_id"`
	WorkflowID     string                `json:"workflow_id"`
	WorkflowStatus schema.WorkflowStatus `json:"workflow_status"`
	Matched        int                   `json:"matched"`
	Unmatched      int                   `json:"unmatched"`
	UnmatchedRefs  []string              `json:"unmatched_refs,omitempty"`
	Derived        int                   `json:"derived"`
	Swapped        bool                  `json:"swapped,omitempty"`
}

// Observer receives every bind summary.
type Observer interface {
	ObserveBind(s Summary)
}

// Option configures a Binder.
type Option func(*Binder)

// WithLogger sets the binder logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Binder) { b.logger = logging.OrNop(l) }
}

// WithObserver registers an observer notified after every bind.
func WithObserver(o Observer) Option {
	return func(b *Binder) { b.observer = o }
}

// Binder writes execution status onto tree nodes. It only ever writes the
// Status slot; binding the same record twice yields the same statuses.
type Binder struct {
	mu        sync.Mutex
	state     State
	record    *schema.Execution
	bindingID string
	observer  Observer
	logger    *slog.Logger
}

// New creates an unbound Binder.
func New(opts ...Option) *Binder {
	b := &Binder{state: StateUnbound, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind applies rec to tr. Binding a record of a different execution than the
// current one behaves like SwapInstance. A nil record unbinds.
func (b *Binder) Bind(tr *tree.Tree, rec *schema.Execution) Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec == nil {
		b.unbindLocked(tr)
		return Summary{}
	}
	swap := b.record != nil && b.record.WorkflowID != rec.WorkflowID
	return b.bindLocked(tr, rec, swap)
}

// SwapInstance discards the current binding wholesale and binds rec.
func (b *Binder) SwapInstance(tr *tree.Tree, rec *schema.Execution) Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec == nil {
		b.unbindLocked(tr)
		return Summary{}
	}
	return b.bindLocked(tr, rec, true)
}

// Unbind resets every node to PENDING and forgets the record.
func (b *Binder) Unbind(tr *tree.Tree) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unbindLocked(tr)
}

// Rebind re-applies the current record, typically after a structural edit.
// It reports false when nothing is bound.
func (b *Binder) Rebind(tr *tree.Tree) (Summary, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.record == nil {
		return Summary{}, false
	}
	return b.bindLocked(tr, b.record, false), true
}

// State returns the lifecycle state.
func (b *Binder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Record returns the bound record, or nil. Callers must not modify it.
func (b *Binder) Record() *schema.Execution {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record
}

// WorkflowStatus returns the bound record's workflow status, or "".
func (b *Binder) WorkflowStatus() schema.WorkflowStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.record == nil {
		return ""
	}
	return b.record.Status
}

// BindingID identifies the current binding; it changes on every swap.
func (b *Binder) BindingID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bindingID
}

func (b *Binder) bindLocked(tr *tree.Tree, rec *schema.Execution, swap bool) Summary {
	b.transition(StateSyncing)
	if swap || b.bindingID == "" {
		b.bindingID = uuid.New().String()
	}
	if swap {
		b.logger.Info("execution swapped", "binding_id", b.bindingID, "workflow_id", rec.WorkflowID)
	}

	res := compute(snapshotOf(tr), rec)
	tr.SetStatuses(res.statuses)
	b.record = rec
	b.transition(StateBound)

	for _, ref := range res.unmatched {
		b.logger.Debug("record entry matches no node", "workflow_id", rec.WorkflowID, "ref", ref)
	}

	s := Summary{
		BindingID:      b.bindingID,
		WorkflowID:     rec.WorkflowID,
		WorkflowStatus: rec.Status,
		Matched:        res.matched,
		Unmatched:      len(res.unmatched),
		UnmatchedRefs:  res.unmatched,
		Derived:        res.derived,
		Swapped:        swap,
	}
	if b.observer != nil {
		b.observer.ObserveBind(s)
	}
	return s
}

func (b *Binder) unbindLocked(tr *tree.Tree) {
	tr.SetStatuses(nil)
	b.record = nil
	b.bindingID = ""
	if b.state != StateUnbound {
		b.transition(StateUnbound)
	}
}

func (b *Binder) transition(to State) {
	for _, allowed := range validTransitions[b.state] {
		if allowed == to {
			b.state = to
			return
		}
	}
	// unreachable through the public methods
	b.logger.Warn("invalid binder transition", "from", b.state, "to", to)
	b.state = to
}
