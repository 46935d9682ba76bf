package validation

import "github.com/rendis/flowgraph/pkg/schema"

// Validator lints task lists and task inputs with JSON Schema Draft 2020-12.
// Findings are advisory: callers attach them as warnings and keep rendering.
type Validator interface {
	ValidateTasks(tasks []schema.Task) *schema.ValidationResult
	ValidateInput(input map[string]any, inputSchema []byte) ([]Violation, error)
}
