package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowgraph/internal/diagram"
	"github.com/rendis/flowgraph/pkg/schema"
)

// handleLoad opens a workflow definition.
func (s *FlowgraphServer) handleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defRaw := mcp.ParseStringMap(req, "definition", nil)
	if defRaw == nil {
		return mcp.NewToolResultError("definition is required"), nil
	}
	data, err := json.Marshal(defRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", err)), nil
	}
	def, err := schema.DecodeWorkflow(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tr := s.session.Load(ctx, *def)
	return marshalResult(map[string]any{
		"nodes":           tr.Len(),
		"depth":           tr.Depth(),
		"version":         tr.Version(),
		"issues":          tr.Issues().Issues(),
		"reconciliations": tr.Reconciliations(),
	})
}

// handleBind overlays a record, swaps to it, or unbinds when none is given.
func (s *FlowgraphServer) handleBind(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recRaw := mcp.ParseStringMap(req, "record", nil)
	if recRaw == nil {
		s.session.Unbind()
		return marshalResult(map[string]any{"ok": true, "bound": false})
	}
	data, err := json.Marshal(recRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid record: %v", err)), nil
	}
	rec, err := schema.DecodeExecution(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if req.GetBool("swap", false) {
		return marshalResult(s.session.SwapInstance(ctx, rec))
	}
	return marshalResult(s.session.Bind(ctx, rec))
}

// handleNodes returns every node or a single one.
func (s *FlowgraphServer) handleNodes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("id", ""); id != "" {
		n, ok := s.session.Node(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("node %q not found", id)), nil
		}
		return marshalResult(n)
	}
	return marshalResult(map[string]any{"nodes": s.session.Nodes()})
}

// handleLayout arranges the tree for a viewport.
func (s *FlowgraphServer) handleLayout(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	width, err := req.RequireFloat("width")
	if err != nil {
		return mcp.NewToolResultError("width is required"), nil
	}
	height, err := req.RequireFloat("height")
	if err != nil {
		return mcp.NewToolResultError("height is required"), nil
	}

	r, extent := s.session.Layout(width, height)
	return marshalResult(map[string]any{
		"zoom":    r.Zoom,
		"padding": r.Padding,
		"extent":  extent,
	})
}

// handleGetTool resolves a catalog tool.
func (s *FlowgraphServer) handleGetTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError("value is required"), nil
	}
	var path []string
	if p := req.GetString("path", ""); p != "" {
		path = strings.Split(p, ".")
	}

	tool, ok := s.session.GetTool(value, path...)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("tool %q not found", value)), nil
	}
	return marshalResult(tool)
}

// handleEdit dispatches a structural edit.
func (s *FlowgraphServer) handleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	op, err := req.RequireString("op")
	if err != nil {
		return mcp.NewToolResultError("op is required"), nil
	}
	id := req.GetString("id", "")
	containerID := req.GetString("container_id", "")
	index := req.GetInt("index", 0)

	var added string
	switch op {
	case "insert":
		task, terr := taskArg(req)
		if terr != nil {
			return mcp.NewToolResultError(terr.Error()), nil
		}
		err = s.session.Insert(ctx, containerID, index, task)
		added = task.TaskReferenceName
	case "delete":
		err = s.session.Delete(ctx, id)
	case "move":
		err = s.session.Move(ctx, id, containerID, index)
	case "wrap_in_loop":
		loop, terr := taskArg(req)
		if terr != nil {
			return mcp.NewToolResultError(terr.Error()), nil
		}
		err = s.session.WrapInLoop(ctx, id, loop)
		added = loop.TaskReferenceName
	case "add_branch":
		added, err = s.session.AddBranch(ctx, id)
	case "add_case":
		added, err = s.session.AddCase(ctx, id, req.GetString("name", ""))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown edit op: %s", op)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return marshalResult(map[string]any{
		"ok":      true,
		"op":      op,
		"added":   added,
		"version": s.session.Tree().Version(),
	})
}

// handleCatalog replaces the given catalog sources, then refreshes the tree.
func (s *FlowgraphServer) handleCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat := s.session.Catalog()
	if cat == nil {
		return mcp.NewToolResultError("no catalog configured"), nil
	}
	args := req.GetArguments()

	updated := 0
	if raw, ok := args["builtins"]; ok {
		tools, err := decodeArg(raw, schema.DecodeTools)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cat.UpdateBuiltIns(tools)
		updated++
	}
	if raw, ok := args["sub_workflows"]; ok {
		subs, err := decodeArg(raw, schema.DecodeSubWorkflows)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cat.UpdateSubWorkflowTools(subs)
		updated++
	}
	if raw, ok := args["dependent"]; ok {
		tools, err := decodeArg(raw, schema.DecodeTools)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cat.UpdateDependentWorkflowTools(tools)
		updated++
	}
	if updated == 0 {
		return mcp.NewToolResultError("at least one of builtins, sub_workflows or dependent is required"), nil
	}

	rebuilt := s.session.Refresh(ctx)
	return marshalResult(map[string]any{
		"ready":      cat.Ready(),
		"generation": cat.Generation(),
		"tools":      cat.Len(),
		"rebuilt":    rebuilt,
	})
}

// handleDiagram renders the current tree in the requested format.
func (s *FlowgraphServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}

	model := diagram.Build(s.session.Tree(), s.session.Definition().Name)
	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	case "image":
		png, imgErr := diagram.RenderImage(ctx, model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	default:
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}
}

// handleSubscribe maps the subscriber to its current MCP session.
func (s *FlowgraphServer) handleSubscribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subscriberID, err := req.RequireString("subscriber_id")
	if err != nil {
		return mcp.NewToolResultError("subscriber_id is required"), nil
	}
	if !s.captureSession(ctx, subscriberID) {
		return mcp.NewToolResultError("no MCP session on this transport"), nil
	}
	return marshalResult(map[string]any{"ok": true, "subscriber_id": subscriberID, "session_id": s.session.ID()})
}

// --- Internal helpers ---

func taskArg(req mcp.CallToolRequest) (schema.Task, error) {
	raw := mcp.ParseStringMap(req, "task", nil)
	if raw == nil {
		return schema.Task{}, errors.New("task is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return schema.Task{}, fmt.Errorf("invalid task: %w", err)
	}
	var task schema.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return schema.Task{}, fmt.Errorf("invalid task: %w", err)
	}
	return task, nil
}

func decodeArg[T any](raw any, decode func([]byte) (T, error)) (T, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode(data)
}

// captureSession maps the subscriber ID to its current MCP session for notifications.
func (s *FlowgraphServer) captureSession(ctx context.Context, subscriberID string) bool {
	session := server.ClientSessionFromContext(ctx)
	if session == nil {
		return false
	}
	s.sessions.Register(subscriberID, session.SessionID())
	return true
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
