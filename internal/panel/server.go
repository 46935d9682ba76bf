// Package panel serves the open workflow view over HTTP: render-ready nodes,
// layout, diagrams and a live status stream.
package panel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/internal/session"
	"github.com/rendis/flowgraph/internal/streaming"
)

// PanelDeps holds the dependencies for the panel server.
type PanelDeps struct {
	Session *session.Session
	Hub     streaming.EventHub
	Logger  *slog.Logger
}

// PanelServer serves the HTTP view of one session.
type PanelServer struct {
	deps PanelDeps
}

// NewPanelServer creates a new PanelServer.
func NewPanelServer(deps PanelDeps) *PanelServer {
	deps.Logger = logging.OrNop(deps.Logger)
	return &PanelServer{deps: deps}
}

// Handler returns the HTTP handler for the panel routes.
func (s *PanelServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Queries.
	mux.HandleFunc("GET /api/workflow", s.handleWorkflow)
	mux.HandleFunc("GET /api/nodes", s.handleNodes)
	mux.HandleFunc("GET /api/nodes/{id}", s.handleNode)
	mux.HandleFunc("GET /api/layout", s.handleLayout)
	mux.HandleFunc("GET /api/diagram", s.handleDiagram)
	mux.HandleFunc("GET /api/tools/{name}", s.handleTool)

	// Binding.
	mux.HandleFunc("POST /api/bind", s.handleBind)
	mux.HandleFunc("DELETE /api/bind", s.handleUnbind)

	// SSE streams.
	mux.HandleFunc("GET /sse/events", s.handleSSESession)
	mux.HandleFunc("GET /sse/workflows/{id}", s.handleSSEWorkflow)

	return mux
}

// Serve listens on addr until ctx is done.
func (s *PanelServer) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("panel listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
