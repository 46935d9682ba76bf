package streaming

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// watcherBuffer is the per-watcher event backlog.
const watcherBuffer = 64

type watcher struct {
	ch     chan StreamEvent
	filter EventFilter
}

// MemoryHub fans view change events out to in-process watchers: the
// inspect --watch loop, panel SSE streams and MCP clients of one process.
type MemoryHub struct {
	mu      sync.RWMutex
	subs    map[uint64]*watcher
	nextID  atomic.Uint64
	dropped atomic.Uint64
}

// NewMemoryHub returns a hub with no watchers.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		subs: make(map[uint64]*watcher),
	}
}

// Publish delivers a node_status, workflow_status or tree_changed event to
// every watcher whose filter matches. It never blocks a bind: a watcher with
// a full buffer misses the event and Dropped counts it.
func (h *MemoryHub) Publish(ctx context.Context, event StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, w := range h.subs {
		if !matchFilter(w.filter, event) {
			continue
		}
		select {
		case w.ch <- event:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a watcher for one session, workflow run, event type
// set or node set. cancel detaches it and closes the channel.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	id := h.nextID.Add(1)
	ch := make(chan StreamEvent, watcherBuffer)

	h.mu.Lock()
	h.subs[id] = &watcher{ch: ch, filter: filter}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}

	return ch, cancel, nil
}

// Subscribers returns the number of attached watchers.
func (h *MemoryHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many events watchers missed on a full buffer.
func (h *MemoryHub) Dropped() uint64 {
	return h.dropped.Load()
}

func matchFilter(f EventFilter, e StreamEvent) bool {
	if f.SessionID != "" && f.SessionID != e.SessionID {
		return false
	}
	if f.WorkflowID != "" && f.WorkflowID != e.WorkflowID {
		return false
	}
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, e.EventType) {
		return false
	}
	// node filters only apply to per-node events
	if len(f.NodeIDs) > 0 && e.NodeID != "" && !slices.Contains(f.NodeIDs, e.NodeID) {
		return false
	}
	return true
}

var _ EventHub = (*MemoryHub)(nil)
