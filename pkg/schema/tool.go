package schema

import "encoding/json"

// ToolDefinition is one callable entry of the tool catalog.
type ToolDefinition struct {
	Name         string          `json:"name" yaml:"name"`
	DisplayName  string          `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description  string          `json:"description,omitempty" yaml:"description,omitempty"`
	Category     string          `json:"category,omitempty" yaml:"category,omitempty"`
	Icon         string          `json:"icon,omitempty" yaml:"icon,omitempty"`
	Type         TaskType        `json:"type,omitempty" yaml:"type,omitempty"`
	InputParams  []ToolParam     `json:"inputParams,omitempty" yaml:"inputParams,omitempty"`
	OutputParams []ToolParam     `json:"outputParams,omitempty" yaml:"outputParams,omitempty"`
	InputSchema  json.RawMessage `json:"inputSchema,omitempty" yaml:"-"`
	Extra        map[string]any  `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// ToolParam describes one input or output variable of a tool.
type ToolParam struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	List        bool   `json:"list,omitempty" yaml:"list,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Hidden      bool   `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// Param value types.
const (
	ParamTypeString  = "string"
	ParamTypeNumber  = "number"
	ParamTypeBoolean = "boolean"
	ParamTypeObject  = "object"
	ParamTypeAny     = "any"
)

// DisplayLabel returns the display name, falling back to the tool name.
func (t ToolDefinition) DisplayLabel() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

// SubWorkflow is a user-authored workflow exposed as a callable tool.
type SubWorkflow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Version     int        `json:"version,omitempty"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Variables   []Variable `json:"variables,omitempty"`
	Outputs     []Variable `json:"outputs,omitempty"`
	Tasks       []Task     `json:"tasks,omitempty"`
}

// Variable is a declared sub-workflow input or output. Example holds a
// literal the author entered; its JSON type drives output type inference.
type Variable struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
	Example     any    `json:"example,omitempty"`
}

// InferParamType maps an example literal to a param type and list flag.
// Arrays take the type of their first element.
func InferParamType(example any) (string, bool) {
	switch v := example.(type) {
	case []any:
		if len(v) == 0 {
			return ParamTypeString, true
		}
		typ, _ := InferParamType(v[0])
		return typ, true
	case float64, float32, int, int64, int32, json.Number:
		return ParamTypeNumber, false
	case bool:
		return ParamTypeBoolean, false
	default:
		return ParamTypeString, false
	}
}

// Clone returns a copy whose slices and maps can be modified independently.
func (t ToolDefinition) Clone() ToolDefinition {
	out := t
	if t.InputParams != nil {
		out.InputParams = append([]ToolParam(nil), t.InputParams...)
	}
	if t.OutputParams != nil {
		out.OutputParams = append([]ToolParam(nil), t.OutputParams...)
	}
	if t.InputSchema != nil {
		out.InputSchema = append(json.RawMessage(nil), t.InputSchema...)
	}
	out.Extra = cloneMap(t.Extra)
	return out
}
