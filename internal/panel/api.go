package panel

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rendis/flowgraph/internal/diagram"
	"github.com/rendis/flowgraph/pkg/schema"
)

const maxRecordBytes = 16 << 20

// handleWorkflow summarizes the loaded definition and its binding.
func (s *PanelServer) handleWorkflow(w http.ResponseWriter, _ *http.Request) {
	sess := s.deps.Session
	def := sess.Definition()
	tr := sess.Tree()
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":      sess.ID(),
		"name":            def.Name,
		"version":         def.Version,
		"description":     def.Description,
		"nodes":           tr.Len(),
		"depth":           tr.Depth(),
		"tree_version":    tr.Version(),
		"workflow_status": sess.Binder().WorkflowStatus(),
		"issues":          tr.Issues().Issues(),
	})
}

func (s *PanelServer) handleNodes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"nodes": s.deps.Session.Nodes()})
}

func (s *PanelServer) handleNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, ok := s.deps.Session.Node(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("node %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// handleLayout arranges the tree for the viewport given by width and height.
func (s *PanelServer) handleLayout(w http.ResponseWriter, r *http.Request) {
	width := queryFloat(r, "width", 1280)
	height := queryFloat(r, "height", 800)
	if width <= 0 || height <= 0 {
		writeError(w, http.StatusBadRequest, "width and height must be positive")
		return
	}

	res, extent := s.deps.Session.Layout(width, height)
	writeJSON(w, http.StatusOK, map[string]any{
		"zoom":    res.Zoom,
		"padding": res.Padding,
		"extent":  extent,
		"nodes":   s.deps.Session.Nodes(),
	})
}

// handleDiagram renders the tree as mermaid (default), ascii or png.
func (s *PanelServer) handleDiagram(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "mermaid"
	}

	model := diagram.Build(s.deps.Session.Tree(), s.deps.Session.Definition().Name)
	switch format {
	case "mermaid":
		writeText(w, diagram.RenderMermaid(model))
	case "ascii":
		writeText(w, diagram.RenderASCII(model))
	case "png":
		png, err := diagram.RenderImage(r.Context(), model)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("image render failed: %v", err))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		_, _ = w.Write(png)
	default:
		writeError(w, http.StatusBadRequest, "format must be mermaid, ascii or png")
	}
}

// handleTool resolves a catalog tool by name, or by the value at the dotted
// property path given in ?path=.
func (s *PanelServer) handleTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var path []string
	if p := r.URL.Query().Get("path"); p != "" {
		path = strings.Split(p, ".")
	}
	tool, ok := s.deps.Session.GetTool(name, path...)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("tool %q not found", name))
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

// handleBind overlays the posted execution record. ?swap=true discards the
// current binding first.
func (s *PanelServer) handleBind(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	rec, err := schema.DecodeExecution(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	swap, _ := strconv.ParseBool(r.URL.Query().Get("swap"))
	if swap {
		writeJSON(w, http.StatusOK, s.deps.Session.SwapInstance(r.Context(), rec))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Session.Bind(r.Context(), rec))
}

func (s *PanelServer) handleUnbind(w http.ResponseWriter, _ *http.Request) {
	s.deps.Session.Unbind()
	w.WriteHeader(http.StatusNoContent)
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
