package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/internal/session"
)

// ServerDeps holds the dependencies for creating a FlowgraphServer.
type ServerDeps struct {
	Session *session.Session
	Version string
	Logger  *slog.Logger
}

// FlowgraphServer wraps an MCP server with flowgraph tool handlers.
type FlowgraphServer struct {
	session   *session.Session
	logger    *slog.Logger
	sessions  *SessionRegistry
	mcpServer *server.MCPServer
}

// NewFlowgraphServer creates a new FlowgraphServer with all tools registered.
func NewFlowgraphServer(deps ServerDeps) *FlowgraphServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &FlowgraphServer{
		session:  deps.Session,
		logger:   logging.OrNop(deps.Logger),
		sessions: NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"flowgraph",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Flowgraph renders workflow definitions as a node tree and overlays execution records onto it. "+
			"Use flowgraph.load to open a definition, flowgraph.bind to apply an execution record, flowgraph.nodes and "+
			"flowgraph.layout to read the render model, flowgraph.edit to change the structure, flowgraph.catalog to "+
			"update tool sources and flowgraph.subscribe to receive status notifications."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowgraphServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowgraphServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Sessions returns the subscriber registry the notifier pushes to.
func (s *FlowgraphServer) Sessions() *SessionRegistry {
	return s.sessions
}

func (s *FlowgraphServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: loadTool(), Handler: s.handleLoad},
		{Tool: bindTool(), Handler: s.handleBind},
		{Tool: nodesTool(), Handler: s.handleNodes},
		{Tool: layoutTool(), Handler: s.handleLayout},
		{Tool: getToolTool(), Handler: s.handleGetTool},
		{Tool: editTool(), Handler: s.handleEdit},
		{Tool: catalogTool(), Handler: s.handleCatalog},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: subscribeTool(), Handler: s.handleSubscribe},
	}
}

// --- Tool definitions ---

func loadTool() mcp.Tool {
	return mcp.NewTool("flowgraph.load",
		mcp.WithDescription("Open a workflow definition and build its node tree"),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("Workflow definition with a tasks array")),
	)
}

func bindTool() mcp.Tool {
	return mcp.NewTool("flowgraph.bind",
		mcp.WithDescription("Overlay an execution record onto the node tree"),
		mcp.WithObject("record", mcp.Description("Execution record; omit to unbind")),
		mcp.WithBoolean("swap", mcp.Description("Discard the current binding first")),
	)
}

func nodesTool() mcp.Tool {
	return mcp.NewTool("flowgraph.nodes",
		mcp.WithDescription("List render-ready nodes, or one node by id"),
		mcp.WithString("id", mcp.Description("Node id (default: all nodes)")),
	)
}

func layoutTool() mcp.Tool {
	return mcp.NewTool("flowgraph.layout",
		mcp.WithDescription("Arrange the nodes and estimate zoom and padding for a viewport"),
		mcp.WithNumber("width", mcp.Required(), mcp.Description("Viewport width in pixels")),
		mcp.WithNumber("height", mcp.Required(), mcp.Description("Viewport height in pixels")),
	)
}

func getToolTool() mcp.Tool {
	return mcp.NewTool("flowgraph.get_tool",
		mcp.WithDescription("Look up a catalog tool by name or by the value at a property path"),
		mcp.WithString("value", mcp.Required(), mcp.Description("Tool name, or the value to match")),
		mcp.WithString("path", mcp.Description("Dotted property path to match value against")),
	)
}

func editTool() mcp.Tool {
	return mcp.NewTool("flowgraph.edit",
		mcp.WithDescription("Apply a structural edit to the loaded workflow"),
		mcp.WithString("op", mcp.Required(),
			mcp.Enum("insert", "delete", "move", "wrap_in_loop", "add_branch", "add_case"),
			mcp.Description("Edit operation"),
		),
		mcp.WithString("id", mcp.Description("Target node id (delete, move, wrap_in_loop, add_branch, add_case)")),
		mcp.WithString("container_id", mcp.Description("Destination container id; empty for the root (insert, move)")),
		mcp.WithNumber("index", mcp.Description("Destination index within the container (insert, move)")),
		mcp.WithObject("task", mcp.Description("Task to insert, or the loop task to wrap with")),
		mcp.WithString("name", mcp.Description("Case name (add_case)")),
	)
}

func catalogTool() mcp.Tool {
	return mcp.NewTool("flowgraph.catalog",
		mcp.WithDescription("Replace one or more tool catalog sources and rebuild the tree if the catalog changed"),
		mcp.WithArray("builtins", mcp.Description("Built-in tool definitions")),
		mcp.WithArray("sub_workflows", mcp.Description("Sub-workflow summaries to expose as tools")),
		mcp.WithArray("dependent", mcp.Description("Dependent workflow tool definitions")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("flowgraph.diagram",
		mcp.WithDescription("Render the node tree with its bound status. Returns ASCII art, Mermaid flowchart syntax, or base64-encoded PNG image"),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (base64 PNG)"),
		),
	)
}

func subscribeTool() mcp.Tool {
	return mcp.NewTool("flowgraph.subscribe",
		mcp.WithDescription("Receive node and workflow status notifications on this MCP session"),
		mcp.WithString("subscriber_id", mcp.Required(), mcp.Description("Stable id of the subscribing client")),
	)
}
