package schema

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// DecodeTasks accepts either a bare task array or a workflow definition
// envelope ({"tasks": [...]}) and returns the task list.
func DecodeTasks(data []byte) ([]Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, NewError(ErrCodeDecode, "empty task document")
	}
	if trimmed[0] == '[' {
		var tasks []Task
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, NewError(ErrCodeDecode, "invalid task array").WithCause(err)
		}
		return tasks, nil
	}
	def, err := DecodeWorkflow(trimmed)
	if err != nil {
		return nil, err
	}
	return def.Tasks, nil
}

// DecodeWorkflow parses a workflow definition envelope.
func DecodeWorkflow(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, NewError(ErrCodeDecode, "invalid workflow definition").WithCause(err)
	}
	return &def, nil
}

// DecodeExecution parses a polled execution record.
func DecodeExecution(data []byte) (*Execution, error) {
	var exec Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, NewError(ErrCodeDecode, "invalid execution record").WithCause(err)
	}
	if exec.WorkflowID == "" {
		return nil, NewError(ErrCodeDecode, "execution record has no workflowId")
	}
	return &exec, nil
}

// DecodeTools parses a tool list.
func DecodeTools(data []byte) ([]ToolDefinition, error) {
	var tools []ToolDefinition
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, NewError(ErrCodeDecode, "invalid tool list").WithCause(err)
	}
	return tools, nil
}

// DecodeSubWorkflows parses a sub-workflow list.
func DecodeSubWorkflows(data []byte) ([]SubWorkflow, error) {
	var subs []SubWorkflow
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, NewError(ErrCodeDecode, "invalid sub-workflow list").WithCause(err)
	}
	return subs, nil
}

// EncodeTasks renders a task list in engine JSON.
func EncodeTasks(tasks []Task) ([]byte, error) {
	if tasks == nil {
		tasks = []Task{}
	}
	return json.Marshal(tasks)
}
