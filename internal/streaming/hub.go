// Package streaming carries status change events from the poller to
// watchers.
package streaming

import "context"

// Event types. node_status carries a node's from/to state, workflow_status
// the run status and binding id, tree_changed the tree version after a load
// or edit.
const (
	EventNodeStatus     = "node_status"
	EventWorkflowStatus = "workflow_status"
	EventTreeChanged    = "tree_changed"
)

// StreamEvent is one change notification of a workflow view. NodeID is set
// only for node_status.
type StreamEvent struct {
	SessionID  string `json:"session_id"`
	WorkflowID string `json:"workflow_id,omitempty"`
	NodeID     string `json:"node_id,omitempty"`
	EventType  string `json:"event_type"`
	Payload    any    `json:"payload,omitempty"`
}

// EventFilter narrows what a watcher receives. Empty fields match
// everything; NodeIDs never hides run-level events.
type EventFilter struct {
	SessionID  string   `json:"session_id,omitempty"`
	WorkflowID string   `json:"workflow_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
	NodeIDs    []string `json:"node_ids,omitempty"`
}

// EventHub carries view change events from sessions to watchers.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
