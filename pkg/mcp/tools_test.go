package mcp

import (
	"context"
	"encoding/base64"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/flowgraph/internal/catalog"
	"github.com/rendis/flowgraph/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}

func task(ref string) map[string]any {
	return map[string]any{"name": ref, "taskReferenceName": ref, "type": "SIMPLE"}
}

func definition() map[string]any {
	return map[string]any{
		"name": "orders",
		"tasks": []any{
			task("A"),
			map[string]any{
				"name": "loop", "taskReferenceName": "loop", "type": "DO_WHILE",
				"inputParameters": map[string]any{"loopCount": 2},
				"loopOver":        []any{task("B")},
			},
			task("C"),
		},
	}
}

func newTestServer(t *testing.T) *FlowgraphServer {
	t.Helper()
	cat := catalog.New(catalog.WithRequired(catalog.SourceBuiltIns))
	s := NewFlowgraphServer(ServerDeps{Session: session.New(cat)})

	result, err := s.handleLoad(context.Background(), buildRequest("flowgraph.load", map[string]any{
		"definition": definition(),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	return s
}

func TestLoadTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleLoad(context.Background(), buildRequest("flowgraph.load", map[string]any{
		"definition": definition(),
	}))
	require.NoError(t, err)

	var out struct {
		Nodes int `json:"nodes"`
		Depth int `json:"depth"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, 6, out.Nodes)
	assert.Equal(t, 2, out.Depth)
}

func TestLoadToolMissingDefinition(t *testing.T) {
	s := NewFlowgraphServer(ServerDeps{Session: session.New(nil)})

	result, err := s.handleLoad(context.Background(), buildRequest("flowgraph.load", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestBindTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleBind(context.Background(), buildRequest("flowgraph.bind", map[string]any{
		"record": map[string]any{
			"workflowId": "wf-1",
			"status":     "RUNNING",
			"tasks": []any{
				map[string]any{"referenceTaskName": "A", "status": "COMPLETED"},
				map[string]any{"referenceTaskName": "ghost", "status": "COMPLETED"},
			},
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var sum struct {
		WorkflowID string `json:"workflow_id"`
		Matched    int    `json:"matched"`
		Unmatched  int    `json:"unmatched"`
	}
	unmarshalResult(t, result, &sum)
	assert.Equal(t, "wf-1", sum.WorkflowID)
	assert.Equal(t, 1, sum.Matched)
	assert.Equal(t, 1, sum.Unmatched)

	a, _ := s.session.Node("A")
	assert.Equal(t, "COMPLETED", string(a.Status.State))

	// no record unbinds
	result, err = s.handleBind(context.Background(), buildRequest("flowgraph.bind", map[string]any{}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	a, _ = s.session.Node("A")
	assert.Equal(t, "PENDING", string(a.Status.State))
}

func TestBindToolInvalidRecord(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleBind(context.Background(), buildRequest("flowgraph.bind", map[string]any{
		"record": map[string]any{"status": "RUNNING"},
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "workflowId")
}

func TestNodesTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleNodes(context.Background(), buildRequest("flowgraph.nodes", map[string]any{}))
	require.NoError(t, err)
	var out struct {
		Nodes []session.NodeView `json:"nodes"`
	}
	unmarshalResult(t, result, &out)
	assert.Len(t, out.Nodes, 6)

	result, err = s.handleNodes(context.Background(), buildRequest("flowgraph.nodes", map[string]any{"id": "B"}))
	require.NoError(t, err)
	var b session.NodeView
	unmarshalResult(t, result, &b)
	assert.Equal(t, "loop", b.ParentID)

	result, err = s.handleNodes(context.Background(), buildRequest("flowgraph.nodes", map[string]any{"id": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestLayoutTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleLayout(context.Background(), buildRequest("flowgraph.layout", map[string]any{
		"width": 1600.0, "height": 1200.0,
	}))
	require.NoError(t, err)
	var out struct {
		Zoom    float64 `json:"zoom"`
		Padding float64 `json:"padding"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, 60.0, out.Padding)
	assert.Greater(t, out.Zoom, 0.0)

	result, err = s.handleLayout(context.Background(), buildRequest("flowgraph.layout", map[string]any{"width": 10.0}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestEditTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleEdit(context.Background(), buildRequest("flowgraph.edit", map[string]any{
		"op": "insert", "container_id": "loop", "index": 1, "task": task("B2"),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	b2, ok := s.session.Node("B2")
	require.True(t, ok)
	assert.Equal(t, "loop", b2.ParentID)

	result, err = s.handleEdit(context.Background(), buildRequest("flowgraph.edit", map[string]any{
		"op": "insert", "task": task("A"),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "CONFLICT")

	result, err = s.handleEdit(context.Background(), buildRequest("flowgraph.edit", map[string]any{
		"op": "delete", "id": "C",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	_, ok = s.session.Node("C")
	assert.False(t, ok)

	result, err = s.handleEdit(context.Background(), buildRequest("flowgraph.edit", map[string]any{
		"op": "add_case", "id": "A", "name": "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "INVALID_EDIT")
}

func TestCatalogTool(t *testing.T) {
	s := newTestServer(t)
	a, _ := s.session.Node("A")
	assert.True(t, a.Unsupported)

	result, err := s.handleCatalog(context.Background(), buildRequest("flowgraph.catalog", map[string]any{
		"builtins": []any{map[string]any{"name": "A", "displayName": "Step A", "type": "SIMPLE"}},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var out struct {
		Ready   bool `json:"ready"`
		Rebuilt bool `json:"rebuilt"`
	}
	unmarshalResult(t, result, &out)
	assert.True(t, out.Ready)
	assert.True(t, out.Rebuilt)

	a, _ = s.session.Node("A")
	assert.False(t, a.Unsupported)

	result, err = s.handleGetTool(context.Background(), buildRequest("flowgraph.get_tool", map[string]any{"value": "A"}))
	require.NoError(t, err)
	assert.Contains(t, extractText(t, result), "Step A")

	result, err = s.handleCatalog(context.Background(), buildRequest("flowgraph.catalog", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDiagramTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleDiagram(context.Background(), buildRequest("flowgraph.diagram", map[string]any{"format": "mermaid"}))
	require.NoError(t, err)
	text := extractText(t, result)
	assert.Contains(t, text, "graph TD")
	assert.Contains(t, text, "%% orders")

	result, err = s.handleDiagram(context.Background(), buildRequest("flowgraph.diagram", map[string]any{"format": "ascii"}))
	require.NoError(t, err)
	assert.Contains(t, extractText(t, result), "--- loop sub-steps ---")

	result, err = s.handleDiagram(context.Background(), buildRequest("flowgraph.diagram", map[string]any{"format": "image"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	png, err := base64.StdEncoding.DecodeString(extractText(t, result))
	require.NoError(t, err)
	assert.Equal(t, byte(0x89), png[0])

	result, err = s.handleDiagram(context.Background(), buildRequest("flowgraph.diagram", map[string]any{"format": "svg"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSubscribeToolWithoutSession(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleSubscribe(context.Background(), buildRequest("flowgraph.subscribe", map[string]any{
		"subscriber_id": "canvas-1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Empty(t, s.Sessions().SessionIDs())
}
