package tree

import (
	"fmt"
	"log/slog"

	"github.com/rendis/flowgraph/internal/expressions"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/internal/normalize"
	"github.com/rendis/flowgraph/internal/validation"
	"github.com/rendis/flowgraph/pkg/schema"
)

// ToolSource is the read-only catalog view the builder resolves tools from.
type ToolSource interface {
	Tool(name string) (schema.ToolDefinition, bool)
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = logging.OrNop(l) }
}

// WithValidator enables task-list and tool input schema checks.
func WithValidator(v validation.Validator) Option {
	return func(b *Builder) { b.validator = v }
}

// WithCheckers enables expression compile checks during normalization.
func WithCheckers(c *expressions.Checkers) Option {
	return func(b *Builder) { b.checkers = c }
}

// Builder turns task lists into Trees. It never writes to its ToolSource.
type Builder struct {
	tools     ToolSource
	validator validation.Validator
	checkers  *expressions.Checkers
	logger    *slog.Logger
}

// NewBuilder creates a Builder resolving tools from tools. A nil source
// resolves nothing.
func NewBuilder(tools ToolSource, opts ...Option) *Builder {
	b := &Builder{tools: tools, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build normalizes tasks and builds a fresh tree in one depth-first pass.
func (b *Builder) Build(tasks []schema.Task) *Tree {
	t := &Tree{builder: b}
	t.install(b.normalize(tasks), nil, false)
	return t
}

func (b *Builder) normalize(tasks []schema.Task) *normalize.Result {
	return normalize.Normalize(tasks, normalize.WithLogger(b.logger), normalize.WithCheckers(b.checkers))
}

// subtree builds the nodes for one item and its descendants into nodes.
func (b *Builder) subtree(it *normalize.Item, parentID string, depth int, issues map[string][]schema.ValidationIssue, nodes map[string]*Node) *Node {
	n := &Node{
		ID:          it.ID,
		Kind:        it.Kind,
		Path:        it.Path,
		Task:        it.Task,
		ParentID:    parentID,
		Depth:       depth,
		Loop:        it.Loop,
		Decision:    it.Decision,
		Case:        it.Case,
		Branch:      it.Branch,
		Join:        it.Join,
		SubWorkflow: it.SubWorkflow,
		Terminate:   it.Terminate,
		Issues:      issues[it.ID],
		Status:      Status{State: StatePending},
	}
	if it.Task != nil {
		n.TaskType = it.Task.Type
	}

	tool, found := b.resolve(it, n)
	n.Label = label(it, tool, found)
	if it.Task != nil {
		var def *schema.ToolDefinition
		if found {
			def = &tool
		}
		n.Inputs = displayInputs(def, it.Task.InputParameters)
		n.Outputs = displayOutputs(def, it.Task)
		if found {
			n.Issues = append(n.Issues, b.checkInputs(n.ID, tool, it.Task.InputParameters)...)
		}
	}

	nodes[n.ID] = n
	for _, child := range it.Children {
		c := b.subtree(child, n.ID, depth+1, issues, nodes)
		n.Children = append(n.Children, c.ID)
	}
	return n
}

// resolve applies the tool resolution policy and sets ToolName and
// Unsupported on n.
func (b *Builder) resolve(it *normalize.Item, n *Node) (schema.ToolDefinition, bool) {
	var candidates []string
	structural := false
	switch it.Kind {
	case normalize.KindTask:
		candidates = []string{it.Task.Name, string(it.Task.Type)}
	case normalize.KindSubWorkflow:
		candidates = []string{it.SubWorkflow.Name, string(schema.TaskTypeSubWorkflow)}
	case normalize.KindLoop, normalize.KindDecision, normalize.KindFork, normalize.KindJoin, normalize.KindTerminate:
		candidates = []string{string(it.Task.Type)}
		structural = true
	case normalize.KindUnsupported:
		n.Unsupported = true
		n.ToolName = it.Task.Name
		return schema.ToolDefinition{}, false
	default:
		// synthetic containers and markers resolve to nothing
		return schema.ToolDefinition{}, false
	}

	n.ToolName = candidates[0]
	if b.tools != nil {
		for _, name := range candidates {
			if name == "" {
				continue
			}
			if tool, ok := b.tools.Tool(name); ok {
				n.ToolName = name
				return tool, true
			}
		}
	}
	n.Unsupported = !structural
	if n.Unsupported {
		b.logger.Debug("tool not found", "node", it.ID, "tool", n.ToolName)
	}
	return schema.ToolDefinition{}, false
}

func (b *Builder) checkInputs(id string, tool schema.ToolDefinition, params map[string]any) []schema.ValidationIssue {
	if b.validator == nil || len(tool.InputSchema) == 0 {
		return nil
	}
	vios, err := b.validator.ValidateInput(params, tool.InputSchema)
	if err != nil {
		b.logger.Warn("tool input schema unusable", "tool", tool.Name, "error", err)
		return nil
	}
	issues := make([]schema.ValidationIssue, 0, len(vios))
	for _, v := range vios {
		issues = append(issues, schema.ValidationIssue{
			Path:     id,
			Code:     schema.ErrCodeInputSchema,
			Message:  fmt.Sprintf("inputParameters%s", v.String()),
			Severity: schema.SeverityWarning,
		})
	}
	return issues
}

func label(it *normalize.Item, tool schema.ToolDefinition, found bool) string {
	switch it.Kind {
	case normalize.KindCase:
		return it.Case.Name
	case normalize.KindBranch:
		return fmt.Sprintf("Branch %d", it.Branch.Index+1)
	}
	if it.Task != nil && it.Task.Name != "" && it.Task.Name != string(it.Task.Type) {
		return it.Task.Name
	}
	if found {
		return tool.DisplayLabel()
	}
	if it.Task != nil {
		return it.Task.Name
	}
	return it.ID
}

func marker(id string, kind normalize.Kind, label string) *Node {
	return &Node{ID: id, Kind: kind, Label: label, Status: Status{State: StatePending}}
}
