package catalog

import (
	"sort"

	"github.com/rendis/flowgraph/pkg/schema"
)

// ParametersPrefix namespaces sub-workflow variables in the tool's inputs.
const ParametersPrefix = "parameters."

// VersionParam is the hidden version selector every sub-workflow tool carries.
const VersionParam = "version"

// Resolver looks a tool up by name.
type Resolver func(name string) (schema.ToolDefinition, bool)

// SubWorkflowTool synthesizes the callable tool for a sub-workflow. Declared
// outputs win; otherwise outputs are borrowed from the last task, through
// resolve for call tasks or from workflowOutput keys for a TERMINATE tail. A
// SUB_WORKFLOW tail resolves by the workflow it calls before its own name.
func SubWorkflowTool(sw schema.SubWorkflow, resolve Resolver) schema.ToolDefinition {
	tool := schema.ToolDefinition{
		Name:        sw.Name,
		DisplayName: sw.Name,
		Description: sw.Description,
		Category:    CategoryWorkflows,
		Icon:        sw.Icon,
		Type:        schema.TaskTypeSubWorkflow,
		Extra: map[string]any{
			"workflow": map[string]any{
				"id":      sw.ID,
				"name":    sw.Name,
				"version": sw.Version,
			},
		},
	}
	if tool.Icon == "" {
		tool.Icon = "workflow"
	}

	for _, v := range sw.Variables {
		p := variableParam(v)
		p.Name = ParametersPrefix + v.Name
		tool.InputParams = append(tool.InputParams, p)
	}
	tool.InputParams = append(tool.InputParams, schema.ToolParam{
		Name:    VersionParam,
		Type:    schema.ParamTypeNumber,
		Hidden:  true,
		Default: sw.Version,
	})

	if len(sw.Outputs) > 0 {
		for _, v := range sw.Outputs {
			tool.OutputParams = append(tool.OutputParams, variableParam(v))
		}
		return tool
	}
	tool.OutputParams = tailOutputs(sw.Tasks, resolve)
	return tool
}

func variableParam(v schema.Variable) schema.ToolParam {
	typ, list := schema.InferParamType(v.Example)
	if v.Example == nil && v.Type != "" {
		typ = v.Type
	}
	return schema.ToolParam{
		Name:        v.Name,
		Type:        typ,
		List:        list,
		Required:    v.Required,
		Description: v.Description,
		Default:     v.Example,
	}
}

// OutputKeysParams turns workflowOutput keys into sorted output params.
func OutputKeysParams(output map[string]any) []schema.ToolParam {
	keys := make([]string, 0, len(output))
	for k := range output {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]schema.ToolParam, 0, len(keys))
	for _, k := range keys {
		typ, list := schema.InferParamType(output[k])
		params = append(params, schema.ToolParam{Name: k, Type: typ, List: list})
	}
	return params
}

func tailOutputs(tasks []schema.Task, resolve Resolver) []schema.ToolParam {
	if len(tasks) == 0 {
		return nil
	}
	last := tasks[len(tasks)-1]
	if last.Type == schema.TaskTypeTerminate {
		return OutputKeysParams(last.TerminateSettings().Output)
	}
	if resolve == nil {
		return nil
	}
	names := []string{last.Name, string(last.Type)}
	if last.Type == schema.TaskTypeSubWorkflow && last.SubWorkflowParam != nil && last.SubWorkflowParam.Name != "" {
		names = append([]string{last.SubWorkflowParam.Name}, names...)
	}
	for _, name := range names {
		if t, ok := resolve(name); ok {
			return append([]schema.ToolParam(nil), t.OutputParams...)
		}
	}
	return nil
}
