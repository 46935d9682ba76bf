package tree

import (
	"sort"
	"strings"

	"github.com/rendis/flowgraph/internal/catalog"
	"github.com/rendis/flowgraph/pkg/schema"
)

// displayInputs overlays the tool's declared params with the task's actual
// inputParameters. Declared params keep declaration order; keys nothing
// declares follow in sorted order. Hidden params are not shown but still
// consume their keys.
func displayInputs(tool *schema.ToolDefinition, params map[string]any) []Variable {
	var vars []Variable
	consumed := make(map[string]bool)

	if tool != nil {
		for _, p := range tool.InputParams {
			root, _, _ := strings.Cut(p.Name, ".")
			consumed[root] = true
			if p.Hidden {
				continue
			}
			v, ok := lookupParam(params, p.Name)
			vars = append(vars, Variable{
				Name:     p.Name,
				Type:     p.Type,
				List:     p.List,
				Required: p.Required,
				Declared: true,
				Set:      ok,
				Value:    v,
				Default:  p.Default,
			})
		}
	}

	var extra []string
	for k := range params {
		if !consumed[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		typ, list := schema.InferParamType(params[k])
		if _, isMap := params[k].(map[string]any); isMap {
			typ = schema.ParamTypeObject
		}
		vars = append(vars, Variable{Name: k, Type: typ, List: list, Set: true, Value: params[k]})
	}
	return vars
}

// lookupParam finds name in params, first as a literal key, then as a
// dotted path through nested objects.
func lookupParam(params map[string]any, name string) (any, bool) {
	if v, ok := params[name]; ok {
		return v, true
	}
	var cur any = params
	for _, seg := range strings.Split(name, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// displayOutputs returns the tool's outputs, or a TERMINATE task's
// workflowOutput keys.
func displayOutputs(tool *schema.ToolDefinition, task *schema.Task) []Variable {
	var params []schema.ToolParam
	switch {
	case task != nil && task.Type == schema.TaskTypeTerminate:
		params = catalog.OutputKeysParams(task.TerminateSettings().Output)
	case tool != nil:
		params = tool.OutputParams
	}
	if len(params) == 0 {
		return nil
	}
	vars := make([]Variable, 0, len(params))
	for _, p := range params {
		if p.Hidden {
			continue
		}
		vars = append(vars, Variable{Name: p.Name, Type: p.Type, List: p.List, Declared: true})
	}
	return vars
}
