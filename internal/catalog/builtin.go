package catalog

import (
	_ "embed"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rendis/flowgraph/pkg/schema"
	"gopkg.in/yaml.v3"
)

//go:embed builtin_tools.yaml
var builtinToolsYAML []byte

type builtinDoc struct {
	Tools []builtinTool `yaml:"tools"`
}

type builtinTool struct {
	schema.ToolDefinition `yaml:",inline"`
	InputSchema           map[string]any `yaml:"inputSchema,omitempty"`
}

// DefaultBuiltIns returns the embedded primitive tool set.
func DefaultBuiltIns() ([]schema.ToolDefinition, error) {
	return ParseBuiltIns(builtinToolsYAML)
}

// LoadBuiltIns reads a built-in tool set from a YAML file.
func LoadBuiltIns(path string) ([]schema.ToolDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read builtins %s: %w", path, err)
	}
	return ParseBuiltIns(data)
}

// ParseBuiltIns decodes a YAML tool document ({tools: [...]}).
func ParseBuiltIns(data []byte) ([]schema.ToolDefinition, error) {
	var doc builtinDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "invalid builtin tool document").WithCause(err)
	}
	tools := make([]schema.ToolDefinition, 0, len(doc.Tools))
	for i, bt := range doc.Tools {
		if bt.Name == "" {
			return nil, schema.NewErrorf(schema.ErrCodeDecode, "builtin tool %d has no name", i)
		}
		t := bt.ToolDefinition
		if len(bt.InputSchema) > 0 {
			raw, err := json.Marshal(bt.InputSchema)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeDecode, "builtin tool %s: bad inputSchema", t.Name).WithCause(err)
			}
			t.InputSchema = raw
		}
		tools = append(tools, t)
	}
	return tools, nil
}
