package validation

import (
	"fmt"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rendis/flowgraph/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const taskListSchemaURL = "https://flowgraph.dev/schemas/tasks.json"

// taskListSchemaJSON describes the structural shape of an engine task array.
// It is intentionally permissive on inputParameters.
const taskListSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowgraph.dev/schemas/tasks.json",
  "type": "array",
  "items": { "$ref": "#/$defs/task" },
  "$defs": {
    "taskList": {
      "type": "array",
      "items": { "$ref": "#/$defs/task" }
    },
    "task": {
      "type": "object",
      "required": ["name", "taskReferenceName", "type"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "taskReferenceName": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "minLength": 1 },
        "description": { "type": "string" },
        "optional": { "type": "boolean" },
        "inputParameters": { "type": "object" },
        "evaluatorType": { "type": "string" },
        "loopCondition": { "type": "string" },
        "loopOver": { "$ref": "#/$defs/taskList" },
        "expression": { "type": "string" },
        "caseValueParam": { "type": "string" },
        "decisionCases": {
          "type": "object",
          "additionalProperties": { "$ref": "#/$defs/taskList" }
        },
        "defaultCase": { "$ref": "#/$defs/taskList" },
        "forkTasks": {
          "type": "array",
          "items": { "$ref": "#/$defs/taskList" }
        },
        "joinOn": { "type": "array", "items": { "type": "string" } },
        "joinBranches": { "type": "array", "items": { "type": "integer", "minimum": 0 } },
        "subWorkflowParam": {
          "type": "object",
          "required": ["name"],
          "properties": {
            "name": { "type": "string", "minLength": 1 },
            "version": { "type": "integer" }
          }
        }
      },
      "allOf": [
        {
          "if": { "properties": { "type": { "const": "DO_WHILE" } } },
          "then": { "required": ["loopOver"] }
        },
        {
          "if": { "properties": { "type": { "const": "FORK_JOIN" } } },
          "then": { "required": ["forkTasks"] }
        },
        {
          "if": { "properties": { "type": { "const": "SUB_WORKFLOW" } } },
          "then": { "required": ["subWorkflowParam"] }
        }
      ]
    }
  }
}`

// Violation is one leaf schema failure with its instance location.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// JSONSchemaValidator implements Validator. It is safe for concurrent use.
type JSONSchemaValidator struct {
	taskSchema *jsonschema.Schema

	// mu guards the input schema cache.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

var _ Validator = (*JSONSchemaValidator)(nil)

// NewJSONSchemaValidator creates a validator with the task list schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newCompiler()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(taskListSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal task schema: %w", err)
	}
	if err := c.AddResource(taskListSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add task schema resource: %w", err)
	}
	compiled, err := c.Compile(taskListSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile task schema: %w", err)
	}

	return &JSONSchemaValidator{
		taskSchema: compiled,
		cache:      make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateTasks checks a task list against the structural schema. Every
// violation becomes a warning keyed by its JSON pointer.
func (v *JSONSchemaValidator) ValidateTasks(tasks []schema.Task) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if tasks == nil {
		tasks = []schema.Task{}
	}
	doc, err := toJSONValue(tasks)
	if err != nil {
		result.AddWarning("/", schema.ErrCodeValidation, "task list is not serializable: "+err.Error())
		return result
	}
	for _, vio := range violationsOf(v.taskSchema.Validate(doc)) {
		result.AddWarning(vio.Path, schema.ErrCodeValidation, vio.Message)
	}
	return result
}

// ValidateInput validates input against a JSON Schema given as raw bytes.
// The schema is compiled once and cached. An error is returned only when
// the schema itself is unusable.
func (v *JSONSchemaValidator) ValidateInput(input map[string]any, inputSchema []byte) ([]Violation, error) {
	if len(inputSchema) == 0 {
		return nil, nil
	}
	compiled, err := v.getOrCompile(inputSchema)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid input schema").WithCause(err)
	}
	if input == nil {
		input = map[string]any{}
	}
	doc, err := toJSONValue(input)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "failed to serialize input").WithCause(err)
	}
	return violationsOf(compiled.Validate(doc)), nil
}

func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Each dynamic schema gets its own compiler and URL to avoid resource collisions.
	url := fmt.Sprintf("flowgraph://input-schema/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips v through JSON so numbers become json.Number, as
// the jsonschema library expects.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

func violationsOf(err error) []Violation {
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []Violation{{Path: "/", Message: err.Error()}}
	}
	return collectViolations(verr)
}

// collectViolations walks a ValidationError tree and returns its leaves.
func collectViolations(verr *jsonschema.ValidationError) []Violation {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []Violation{{Path: loc, Message: verr.Error()}}
	}
	var out []Violation
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
