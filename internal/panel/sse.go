package panel

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/rendis/flowgraph/internal/streaming"
)

// handleSSESession streams every event of the served session.
func (s *PanelServer) handleSSESession(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, streaming.EventFilter{
		SessionID:  s.deps.Session.ID(),
		EventTypes: eventTypes(r),
		NodeIDs:    r.URL.Query()["node"],
	})
}

// handleSSEWorkflow streams events for one bound workflow run.
func (s *PanelServer) handleSSEWorkflow(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, streaming.EventFilter{
		SessionID:  s.deps.Session.ID(),
		WorkflowID: r.PathValue("id"),
		EventTypes: eventTypes(r),
		NodeIDs:    r.URL.Query()["node"],
	})
}

// serveSSE is the common SSE implementation.
func (s *PanelServer) serveSSE(w http.ResponseWriter, r *http.Request, filter streaming.EventFilter) {
	if s.deps.Hub == nil {
		writeError(w, http.StatusNotFound, "event streaming is not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed", "error", err)
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
			flusher.Flush()
		}
	}
}

func eventTypes(r *http.Request) []string {
	return r.URL.Query()["type"]
}
