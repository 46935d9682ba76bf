package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/internal/streaming"
)

// Sender delivers one notification to one MCP session.
// *server.MCPServer satisfies it.
type Sender interface {
	SendNotificationToSpecificClient(sessionID, method string, params map[string]any) error
}

// Notifier forwards hub events to every subscribed MCP session.
type Notifier struct {
	sender   Sender
	sessions *SessionRegistry
	logger   *slog.Logger
}

// NewNotifier creates a notifier pushing through sender.
func NewNotifier(sender Sender, sessions *SessionRegistry, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, sessions: sessions, logger: logging.OrNop(logger)}
}

// Notify sends the event to every registered session.
// Best-effort: sessions that went away are dropped from the registry.
func (n *Notifier) Notify(_ context.Context, e streaming.StreamEvent) error {
	payload := map[string]any{
		"event_type":  e.EventType,
		"session_id":  e.SessionID,
		"workflow_id": e.WorkflowID,
		"node_id":     e.NodeID,
		"payload":     e.Payload,
	}
	var errs []error
	for _, sid := range n.sessions.SessionIDs() {
		err := n.sender.SendNotificationToSpecificClient(sid, "notifications/message", payload)
		if errors.Is(err, server.ErrSessionNotFound) {
			// Session expired between lookup and send; not an error.
			n.sessions.Remove(sid)
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run subscribes to hub and forwards events until ctx is done.
func (n *Notifier) Run(ctx context.Context, hub streaming.EventHub, filter streaming.EventFilter) error {
	ch, cancel, err := hub.Subscribe(ctx, filter)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if err := n.Notify(ctx, e); err != nil {
				n.logger.Debug("notification failed", "event_type", e.EventType, "error", err)
			}
		}
	}
}
