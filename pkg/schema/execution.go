package schema

// WorkflowStatus is the engine-reported lifecycle state of a run.
type WorkflowStatus string

const (
	WorkflowStatusRunning    WorkflowStatus = "RUNNING"
	WorkflowStatusPaused     WorkflowStatus = "PAUSED"
	WorkflowStatusCompleted  WorkflowStatus = "COMPLETED"
	WorkflowStatusFailed     WorkflowStatus = "FAILED"
	WorkflowStatusTimedOut   WorkflowStatus = "TIMED_OUT"
	WorkflowStatusTerminated WorkflowStatus = "TERMINATED"
)

// Terminal reports whether the run can no longer change.
func (s WorkflowStatus) Terminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusTimedOut, WorkflowStatusTerminated:
		return true
	}
	return false
}

// TaskStatus is the engine-reported state of one task execution.
type TaskStatus string

const (
	TaskStatusScheduled               TaskStatus = "SCHEDULED"
	TaskStatusInProgress              TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted               TaskStatus = "COMPLETED"
	TaskStatusCompletedWithErrors     TaskStatus = "COMPLETED_WITH_ERRORS"
	TaskStatusFailed                  TaskStatus = "FAILED"
	TaskStatusFailedWithTerminalError TaskStatus = "FAILED_WITH_TERMINAL_ERROR"
	TaskStatusTimedOut                TaskStatus = "TIMED_OUT"
	TaskStatusCanceled                TaskStatus = "CANCELED"
	TaskStatusSkipped                 TaskStatus = "SKIPPED"
)

// Execution is one polled snapshot of a workflow run. A new poll yields a new
// Execution; existing values are never modified.
type Execution struct {
	WorkflowID            string          `json:"workflowId"`
	WorkflowName          string          `json:"workflowName,omitempty"`
	WorkflowVersion       int             `json:"workflowVersion,omitempty"`
	Status                WorkflowStatus  `json:"status"`
	StartTime             int64           `json:"startTime,omitempty"`
	EndTime               int64           `json:"endTime,omitempty"`
	UpdateTime            int64           `json:"updateTime,omitempty"`
	Input                 map[string]any  `json:"input,omitempty"`
	Output                map[string]any  `json:"output,omitempty"`
	ReasonForIncompletion string          `json:"reasonForIncompletion,omitempty"`
	Tasks                 []TaskExecution `json:"tasks"`
}

// TaskExecution is the per-task entry of an Execution.
type TaskExecution struct {
	TaskID                           string         `json:"taskId,omitempty"`
	ReferenceTaskName                string         `json:"referenceTaskName"`
	TaskType                         string         `json:"taskType,omitempty"`
	Status                           TaskStatus     `json:"status"`
	ScheduledTime                    int64          `json:"scheduledTime,omitempty"`
	StartTime                        int64          `json:"startTime,omitempty"`
	EndTime                          int64          `json:"endTime,omitempty"`
	Iteration                        int            `json:"iteration,omitempty"`
	Seq                              string         `json:"seq,omitempty"`
	RetryCount                       int            `json:"retryCount,omitempty"`
	InputData                        map[string]any `json:"inputData,omitempty"`
	OutputData                       map[string]any `json:"outputData,omitempty"`
	ExternalInputPayloadStoragePath  string         `json:"externalInputPayloadStoragePath,omitempty"`
	ExternalOutputPayloadStoragePath string         `json:"externalOutputPayloadStoragePath,omitempty"`
	ReasonForIncompletion            string         `json:"reasonForIncompletion,omitempty"`
}
