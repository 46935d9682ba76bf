package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionCases_PreservesKeyOrder(t *testing.T) {
	doc := []byte(`[{
		"name": "route", "taskReferenceName": "route", "type": "SWITCH",
		"evaluatorType": "value-param", "expression": "kind",
		"decisionCases": {"zeta": [{"name": "z", "taskReferenceName": "z", "type": "SIMPLE"}], "alpha": [], "mid": []},
		"defaultCase": []
	}]`)

	tasks, err := DecodeTasks(doc)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	cases := tasks[0].DecisionCases
	require.Len(t, cases, 3)
	assert.Equal(t, "zeta", cases[0].Name)
	assert.Equal(t, "alpha", cases[1].Name)
	assert.Equal(t, "mid", cases[2].Name)
	assert.NotNil(t, cases[1].Tasks)
	assert.Equal(t, 2, cases.Index("mid"))
	assert.Equal(t, -1, cases.Index("nope"))

	zeta, ok := cases.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, "z", zeta[0].TaskReferenceName)

	out, err := cases.MarshalJSON()
	require.NoError(t, err)
	assert.Regexp(t, `^\{"zeta":\[.*\],"alpha":\[\],"mid":\[\]\}$`, string(out))
}

func TestDecisionCases_RejectsNonObject(t *testing.T) {
	var c DecisionCases
	assert.Error(t, c.UnmarshalJSON([]byte(`[1,2]`)))
	require.NoError(t, c.UnmarshalJSON([]byte(`null`)))
	assert.Nil(t, c)
}

func TestTask_CloneIsDeep(t *testing.T) {
	v := 2
	src := Task{
		Name: "f", TaskReferenceName: "f", Type: TaskTypeForkJoin,
		InputParameters: map[string]any{"nested": map[string]any{"k": []any{"a"}}},
		ForkTasks:       [][]Task{{{Name: "a", TaskReferenceName: "a", Type: TaskTypeSimple}}, {}},
		SubWorkflowParam: &SubWorkflowParam{Name: "child", Version: &v},
	}
	cp := src.Clone()
	cp.InputParameters["nested"].(map[string]any)["k"].([]any)[0] = "b"
	cp.ForkTasks[0][0].Name = "changed"
	*cp.SubWorkflowParam.Version = 3

	assert.Equal(t, "a", src.InputParameters["nested"].(map[string]any)["k"].([]any)[0])
	assert.Equal(t, "a", src.ForkTasks[0][0].Name)
	assert.Equal(t, 2, *src.SubWorkflowParam.Version)
	assert.NotNil(t, cp.ForkTasks[1])
}

func TestInferParamType(t *testing.T) {
	tests := []struct {
		example any
		typ     string
		list    bool
	}{
		{float64(3), ParamTypeNumber, false},
		{true, ParamTypeBoolean, false},
		{"x", ParamTypeString, false},
		{nil, ParamTypeString, false},
		{[]any{float64(1)}, ParamTypeNumber, true},
		{[]any{}, ParamTypeString, true},
		{map[string]any{}, ParamTypeString, false},
	}
	for _, tt := range tests {
		typ, list := InferParamType(tt.example)
		assert.Equal(t, tt.typ, typ, "%v", tt.example)
		assert.Equal(t, tt.list, list, "%v", tt.example)
	}
}

func TestTask_Settings(t *testing.T) {
	term := Task{Type: TaskTypeTerminate, InputParameters: map[string]any{
		"terminationStatus": "FAILED",
		"terminationReason": "bad input",
		"workflowOutput":    map[string]any{"k": "v"},
	}}
	s := term.TerminateSettings()
	assert.Equal(t, "FAILED", s.Status)
	assert.Equal(t, "bad input", s.Reason)
	assert.Equal(t, map[string]any{"k": "v"}, s.Output)

	bad := Task{InputParameters: map[string]any{"terminationStatus": 5}}
	assert.Equal(t, TerminateSettings{}, bad.TerminateSettings())

	dynamic := Task{Type: TaskTypeTerminate, InputParameters: map[string]any{
		"terminationStatus": "COMPLETED",
		"terminationReason": "done early",
		"workflowOutput":    "${prepare.output}",
	}}
	s = dynamic.TerminateSettings()
	assert.Equal(t, "COMPLETED", s.Status)
	assert.Equal(t, "done early", s.Reason)
	assert.Nil(t, s.Output)

	loop := Task{InputParameters: map[string]any{"loopCount": float64(2)}}
	assert.Equal(t, float64(2), loop.LoopSettings().LoopCount)
	assert.Nil(t, loop.LoopSettings().Items)
	assert.Equal(t, LoopSettings{}, Task{}.LoopSettings())
}
