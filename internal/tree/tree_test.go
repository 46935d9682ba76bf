package tree

import (
	"testing"

	"github.com/rendis/flowgraph/internal/normalize"
	"github.com/rendis/flowgraph/internal/validation"
	"github.com/rendis/flowgraph/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolMap map[string]schema.ToolDefinition

func (m toolMap) Tool(name string) (schema.ToolDefinition, bool) {
	t, ok := m[name]
	return t, ok
}

func simple(ref string) schema.Task {
	return schema.Task{Name: ref, TaskReferenceName: ref, Type: schema.TaskTypeSimple}
}

func loopOf(ref string, body ...schema.Task) schema.Task {
	return schema.Task{
		Name: ref, TaskReferenceName: ref, Type: schema.TaskTypeDoWhile,
		InputParameters: map[string]any{"loopCount": float64(2)},
		LoopOver:        body,
	}
}

func scenario() []schema.Task {
	return []schema.Task{simple("A"), loopOf("loop", simple("B")), simple("C")}
}

func nodeIDs(tr *Tree) []string {
	var out []string
	for _, n := range tr.Nodes() {
		out = append(out, n.ID)
	}
	return out
}

func TestBuild_LoopScenario(t *testing.T) {
	tr := NewBuilder(nil).Build(scenario())

	assert.Equal(t, []string{normalize.StartID, "A", "loop", "B", "C", normalize.EndID}, nodeIDs(tr))
	assert.Equal(t, []string{normalize.StartID, "A", "loop", "C", normalize.EndID}, tr.Roots())
	assert.Equal(t, 6, tr.Len())
	assert.Equal(t, 2, tr.Depth())

	b, ok := tr.Node("B")
	require.True(t, ok)
	assert.Equal(t, "loop", b.ParentID)
	assert.Equal(t, 1, b.Depth)
	assert.Equal(t, "tasks[1].loopOver[0]", b.Path)
	assert.Equal(t, StatePending, b.Status.State)
}

func TestBuild_TaskNodeBijection(t *testing.T) {
	tasks := []schema.Task{
		simple("A"),
		{
			Name: "route", TaskReferenceName: "route", Type: schema.TaskTypeSwitch,
			EvaluatorType: "value-param", Expression: "kind",
			InputParameters: map[string]any{"kind": "${workflow.input.kind}"},
			DecisionCases: schema.DecisionCases{
				{Name: "x", Tasks: []schema.Task{simple("X1")}},
				{Name: "y", Tasks: []schema.Task{}},
			},
			DefaultCase: []schema.Task{simple("D1")},
		},
		{
			Name: "fan", TaskReferenceName: "fan", Type: schema.TaskTypeForkJoin,
			ForkTasks: [][]schema.Task{{simple("F1")}, {simple("F2")}},
		},
		{Name: "fan_join", TaskReferenceName: "fan_join", Type: schema.TaskTypeJoin},
	}
	tr := NewBuilder(nil).Build(tasks)

	refs := map[string]int{}
	synthetic := 0
	for _, n := range tr.Nodes() {
		if ref := n.Ref(); ref != "" {
			refs[ref]++
			continue
		}
		synthetic++
	}
	for _, ref := range []string{"A", "route", "X1", "D1", "fan", "F1", "F2", "fan_join"} {
		assert.Equal(t, 1, refs[ref], ref)
	}
	assert.Len(t, refs, 8)
	// three cases, two branches, two markers
	assert.Equal(t, 7, synthetic)

	def, ok := tr.Node(normalize.DefaultCaseID("route"))
	require.True(t, ok)
	assert.Equal(t, "route", def.ParentID)
	assert.Equal(t, []string{"D1"}, def.Children)

	branch, ok := tr.Node(normalize.BranchID("fan", 1))
	require.True(t, ok)
	assert.Equal(t, "Branch 2", branch.Label)
}

func TestBuild_ToolResolution(t *testing.T) {
	tools := toolMap{
		"HTTP":     {Name: "HTTP", DisplayName: "HTTP Request", Type: schema.TaskTypeHTTP},
		"send_sms": {Name: "send_sms", DisplayName: "Send SMS"},
	}
	tasks := []schema.Task{
		{Name: "fetch", TaskReferenceName: "fetch", Type: schema.TaskTypeHTTP},
		{Name: "HTTP", TaskReferenceName: "plain", Type: schema.TaskTypeHTTP},
		{Name: "send_sms", TaskReferenceName: "sms", Type: schema.TaskTypeSimple},
		{Name: "mystery", TaskReferenceName: "mystery", Type: schema.TaskTypeSimple},
		{Name: "odd", TaskReferenceName: "odd", Type: "BRAND_NEW"},
		loopOf("loop"),
	}
	tr := NewBuilder(tools).Build(tasks)

	fetch, _ := tr.Node("fetch")
	assert.Equal(t, "HTTP", fetch.ToolName)
	assert.False(t, fetch.Unsupported)
	assert.Equal(t, "fetch", fetch.Label)

	plain, _ := tr.Node("plain")
	assert.Equal(t, "HTTP Request", plain.Label)

	sms, _ := tr.Node("sms")
	assert.Equal(t, "send_sms", sms.ToolName)
	assert.False(t, sms.Unsupported)

	mystery, _ := tr.Node("mystery")
	assert.True(t, mystery.Unsupported)
	assert.Equal(t, "mystery", mystery.ToolName)

	odd, _ := tr.Node("odd")
	assert.Equal(t, normalize.KindUnsupported, odd.Kind)
	assert.True(t, odd.Unsupported)

	loop, _ := tr.Node("loop")
	assert.False(t, loop.Unsupported)
}

func TestBuild_InputsOverlay(t *testing.T) {
	tools := toolMap{"HTTP": {
		Name: "HTTP",
		InputParams: []schema.ToolParam{
			{Name: "http_request.uri", Type: schema.ParamTypeString, Required: true},
			{Name: "http_request.method", Type: schema.ParamTypeString, Default: "GET"},
			{Name: "token", Hidden: true},
		},
		OutputParams: []schema.ToolParam{{Name: "response", Type: schema.ParamTypeObject}},
	}}
	task := schema.Task{
		Name: "fetch", TaskReferenceName: "fetch", Type: schema.TaskTypeHTTP,
		InputParameters: map[string]any{
			"http_request": map[string]any{"uri": "https://example.com"},
			"zeta":         float64(1),
			"alpha":        "x",
			"token":        "secret",
		},
	}
	tr := NewBuilder(tools).Build([]schema.Task{task})
	n, _ := tr.Node("fetch")

	var names []string
	for _, v := range n.Inputs {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"http_request.uri", "http_request.method", "alpha", "zeta"}, names)

	assert.True(t, n.Inputs[0].Set)
	assert.Equal(t, "https://example.com", n.Inputs[0].Value)
	assert.False(t, n.Inputs[1].Set)
	assert.Equal(t, "GET", n.Inputs[1].Default)
	assert.False(t, n.Inputs[2].Declared)
	assert.Equal(t, schema.ParamTypeNumber, n.Inputs[3].Type)

	require.Len(t, n.Outputs, 1)
	assert.Equal(t, "response", n.Outputs[0].Name)
}

func TestBuild_TerminateOutputs(t *testing.T) {
	task := schema.Task{
		Name: "stop", TaskReferenceName: "stop", Type: schema.TaskTypeTerminate,
		InputParameters: map[string]any{
			"terminationStatus": "COMPLETED",
			"workflowOutput":    map[string]any{"total": 1, "id": "x"},
		},
	}
	tr := NewBuilder(nil).Build([]schema.Task{task})
	n, _ := tr.Node("stop")

	require.Len(t, n.Outputs, 2)
	assert.Equal(t, "id", n.Outputs[0].Name)
	assert.Equal(t, "total", n.Outputs[1].Name)
	assert.Equal(t, "COMPLETED", n.Terminate.Status)
}

func TestBuild_InputSchemaIssues(t *testing.T) {
	v, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)
	tools := toolMap{"HTTP": {
		Name:        "HTTP",
		InputSchema: []byte(`{"type":"object","required":["http_request"]}`),
	}}
	tasks := []schema.Task{
		{Name: "bad", TaskReferenceName: "bad", Type: schema.TaskTypeHTTP},
		{
			Name: "good", TaskReferenceName: "good", Type: schema.TaskTypeHTTP,
			InputParameters: map[string]any{"http_request": map[string]any{}},
		},
	}
	tr := NewBuilder(tools, WithValidator(v)).Build(tasks)

	bad, _ := tr.Node("bad")
	require.NotEmpty(t, bad.Issues)
	assert.Equal(t, schema.ErrCodeInputSchema, bad.Issues[0].Code)

	good, _ := tr.Node("good")
	assert.Empty(t, good.Issues)

	var codes []string
	for _, is := range tr.Issues().Issues() {
		if is.Path == "bad" {
			codes = append(codes, is.Code)
		}
	}
	assert.Contains(t, codes, schema.ErrCodeInputSchema)
}

func TestBuild_DanglingReferences(t *testing.T) {
	a := simple("A")
	b := simple("B")
	b.InputParameters = map[string]any{
		"fromA":  "${A.output.value}",
		"ghost":  "${nowhere.output.value}",
		"wfArgs": "${workflow.input.x}",
	}
	tr := NewBuilder(nil).Build([]schema.Task{a, b})

	var dangling []schema.ValidationIssue
	for _, is := range tr.Issues().Issues() {
		if is.Code == schema.ErrCodeDanglingRef {
			dangling = append(dangling, is)
		}
	}
	require.Len(t, dangling, 1)
	assert.Equal(t, "B", dangling[0].Path)
	assert.Contains(t, dangling[0].Message, "nowhere")
}

func TestBuild_EmptyTaskList(t *testing.T) {
	tr := NewBuilder(nil).Build(nil)
	assert.Equal(t, []string{normalize.StartID, normalize.EndID}, tr.Roots())
	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, []schema.Task{}, tr.Tasks())
}

func TestTree_SetStatusesResetsMissing(t *testing.T) {
	tr := NewBuilder(nil).Build(scenario())
	tr.SetStatuses(map[string]Status{"A": {State: StateCompleted}, "B": {State: StateRunning}})

	a, _ := tr.Node("A")
	assert.Equal(t, StateCompleted, a.Status.State)

	tr.SetStatuses(map[string]Status{"B": {State: StateCompleted}})
	a, _ = tr.Node("A")
	assert.Equal(t, StatePending, a.Status.State)
	b, _ := tr.Node("B")
	assert.Equal(t, StateCompleted, b.Status.State)
}

func TestTree_View(t *testing.T) {
	tr := NewBuilder(nil).Build(scenario())
	tr.SetStatuses(map[string]Status{"A": {State: StateFailed}})

	var got State
	ok := tr.View("A", func(n *Node) { got = n.Status.State })
	require.True(t, ok)
	assert.Equal(t, StateFailed, got)

	called := false
	assert.False(t, tr.View("missing", func(*Node) { called = true }))
	assert.False(t, called)
}

func TestTree_RebuildKeepsSlots(t *testing.T) {
	tools := toolMap{}
	tr := NewBuilder(tools).Build(scenario())
	tr.SetPositions(map[string]Position{"A": {X: 10, Y: 20}})
	tr.SetStatuses(map[string]Status{"A": {State: StateCompleted}})

	a, _ := tr.Node("A")
	assert.True(t, a.Unsupported)

	tools["A"] = schema.ToolDefinition{Name: "A"}
	before := tr.Version()
	tr.Rebuild()

	a, _ = tr.Node("A")
	assert.False(t, a.Unsupported)
	assert.Equal(t, Position{X: 10, Y: 20}, a.Position)
	assert.Equal(t, StateCompleted, a.Status.State)
	assert.Equal(t, before+1, tr.Version())
}
