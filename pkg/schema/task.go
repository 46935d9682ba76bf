package schema

// Task is the engine-native task record as it appears in a workflow
// definition's task array. Container tasks carry their children in the
// type-specific fields (loopOver, decisionCases, forkTasks).
type Task struct {
	Name              string         `json:"name"`
	TaskReferenceName string         `json:"taskReferenceName"`
	Type              TaskType       `json:"type"`
	Description       string         `json:"description,omitempty"`
	Optional          bool           `json:"optional,omitempty"`
	InputParameters   map[string]any `json:"inputParameters,omitempty"`

	// DO_WHILE and SWITCH
	EvaluatorType string `json:"evaluatorType,omitempty"`
	LoopCondition string `json:"loopCondition,omitempty"`
	LoopOver      []Task `json:"loopOver,omitempty"`

	// SWITCH / DECISION
	Expression     string        `json:"expression,omitempty"`
	CaseValueParam string        `json:"caseValueParam,omitempty"`
	DecisionCases  DecisionCases `json:"decisionCases,omitempty"`
	DefaultCase    []Task        `json:"defaultCase,omitempty"`

	// FORK_JOIN
	ForkTasks [][]Task `json:"forkTasks,omitempty"`

	// JOIN
	JoinOn       []string `json:"joinOn,omitempty"`
	JoinBranches []int    `json:"joinBranches,omitempty"` // empty = all branches

	// SUB_WORKFLOW
	SubWorkflowParam *SubWorkflowParam `json:"subWorkflowParam,omitempty"`
}

// TaskType is the discriminant of a Task.
type TaskType string

const (
	TaskTypeSimple        TaskType = "SIMPLE"
	TaskTypeHTTP          TaskType = "HTTP"
	TaskTypeInline        TaskType = "INLINE"
	TaskTypeWait          TaskType = "WAIT"
	TaskTypeEvent         TaskType = "EVENT"
	TaskTypeHuman         TaskType = "HUMAN"
	TaskTypeJSONTransform TaskType = "JSON_JQ_TRANSFORM"
	TaskTypeSetVariable   TaskType = "SET_VARIABLE"
	TaskTypeKafkaPublish  TaskType = "KAFKA_PUBLISH"
	TaskTypeLambda        TaskType = "LAMBDA"
	TaskTypeNoop          TaskType = "NOOP"
	TaskTypeDoWhile       TaskType = "DO_WHILE"
	TaskTypeSwitch        TaskType = "SWITCH"
	TaskTypeDecision      TaskType = "DECISION"
	TaskTypeForkJoin      TaskType = "FORK_JOIN"
	TaskTypeJoin          TaskType = "JOIN"
	TaskTypeSubWorkflow   TaskType = "SUB_WORKFLOW"
	TaskTypeTerminate     TaskType = "TERMINATE"
)

// leafTaskTypes are the call-style task types that never own children.
var leafTaskTypes = map[TaskType]bool{
	TaskTypeSimple:        true,
	TaskTypeHTTP:          true,
	TaskTypeInline:        true,
	TaskTypeWait:          true,
	TaskTypeEvent:         true,
	TaskTypeHuman:         true,
	TaskTypeJSONTransform: true,
	TaskTypeSetVariable:   true,
	TaskTypeKafkaPublish:  true,
	TaskTypeLambda:        true,
	TaskTypeNoop:          true,
}

// IsCall reports whether t is a simple call-style task type.
func (t TaskType) IsCall() bool {
	return leafTaskTypes[t]
}

// IsControl reports whether t is a control-flow type (loop, decision, fork, join).
func (t TaskType) IsControl() bool {
	switch t {
	case TaskTypeDoWhile, TaskTypeSwitch, TaskTypeDecision, TaskTypeForkJoin, TaskTypeJoin:
		return true
	}
	return false
}

// SubWorkflowParam references another workflow definition.
type SubWorkflowParam struct {
	Name               string         `json:"name"`
	Version            *int           `json:"version,omitempty"`
	WorkflowDefinition map[string]any `json:"workflowDefinition,omitempty"`
}

// WorkflowDefinition is the envelope the engine stores a task array in.
type WorkflowDefinition struct {
	Name        string         `json:"name"`
	Version     int            `json:"version,omitempty"`
	Description string         `json:"description,omitempty"`
	Tasks       []Task         `json:"tasks"`
	InputParams []string       `json:"inputParameters,omitempty"`
	Output      map[string]any `json:"outputParameters,omitempty"`
}

// Clone returns a deep copy of the task. Maps are copied recursively so the
// clone can be edited without touching the source.
func (t Task) Clone() Task {
	out := t
	out.InputParameters = cloneMap(t.InputParameters)
	out.LoopOver = CloneTasks(t.LoopOver)
	out.DefaultCase = CloneTasks(t.DefaultCase)
	if t.DecisionCases != nil {
		out.DecisionCases = make(DecisionCases, len(t.DecisionCases))
		for i, c := range t.DecisionCases {
			out.DecisionCases[i] = DecisionCase{Name: c.Name, Tasks: CloneTasks(c.Tasks)}
		}
	}
	if t.ForkTasks != nil {
		out.ForkTasks = make([][]Task, len(t.ForkTasks))
		for i, b := range t.ForkTasks {
			out.ForkTasks[i] = CloneTasks(b)
			if out.ForkTasks[i] == nil {
				out.ForkTasks[i] = []Task{}
			}
		}
	}
	if t.JoinOn != nil {
		out.JoinOn = append([]string(nil), t.JoinOn...)
	}
	if t.JoinBranches != nil {
		out.JoinBranches = append([]int(nil), t.JoinBranches...)
	}
	if t.SubWorkflowParam != nil {
		p := *t.SubWorkflowParam
		if p.Version != nil {
			v := *p.Version
			p.Version = &v
		}
		p.WorkflowDefinition = cloneMap(p.WorkflowDefinition)
		out.SubWorkflowParam = &p
	}
	return out
}

// CloneTasks deep-copies a task slice. A nil slice stays nil.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
