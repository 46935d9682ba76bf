package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFlowgraphServer(t *testing.T) {
	s := NewFlowgraphServer(ServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.Sessions())
}

func TestToolRegistration(t *testing.T) {
	s := NewFlowgraphServer(ServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 9)

	expectedTools := []string{
		"flowgraph.load",
		"flowgraph.bind",
		"flowgraph.nodes",
		"flowgraph.layout",
		"flowgraph.get_tool",
		"flowgraph.edit",
		"flowgraph.catalog",
		"flowgraph.diagram",
		"flowgraph.subscribe",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"load", "flowgraph.load", "Open a workflow definition and build its node tree"},
		{"bind", "flowgraph.bind", "Overlay an execution record onto the node tree"},
		{"layout", "flowgraph.layout", "Arrange the nodes and estimate zoom and padding for a viewport"},
		{"edit", "flowgraph.edit", "Apply a structural edit to the loaded workflow"},
	}

	s := NewFlowgraphServer(ServerDeps{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
