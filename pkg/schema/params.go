package schema

import "github.com/mitchellh/mapstructure"

// TerminateSettings is the TERMINATE slice of inputParameters.
type TerminateSettings struct {
	Status string         `mapstructure:"terminationStatus"`
	Reason string         `mapstructure:"terminationReason"`
	Output map[string]any `mapstructure:"workflowOutput"`
}

// TerminateSettings decodes the task's termination settings. Each field
// decodes on its own: a value of the wrong type, such as a ${...} string for
// workflowOutput, leaves only that field zero.
func (t Task) TerminateSettings() TerminateSettings {
	return TerminateSettings{
		Status: param[string](t.InputParameters, "terminationStatus"),
		Reason: param[string](t.InputParameters, "terminationReason"),
		Output: param[map[string]any](t.InputParameters, "workflowOutput"),
	}
}

func param[T any](params map[string]any, key string) T {
	var v T
	raw, ok := params[key]
	if !ok || raw == nil {
		return v
	}
	if err := mapstructure.Decode(raw, &v); err != nil {
		var zero T
		return zero
	}
	return v
}

// LoopSettings is the DO_WHILE slice of inputParameters. LoopCount and Items
// stay untyped: either may be a literal or a ${...} placeholder.
type LoopSettings struct {
	LoopCount any `mapstructure:"loopCount"`
	Items     any `mapstructure:"items"`
}

// LoopSettings decodes the task's loop settings.
func (t Task) LoopSettings() LoopSettings {
	var s LoopSettings
	_ = mapstructure.Decode(t.InputParameters, &s)
	return s
}
