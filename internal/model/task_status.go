package model

// TaskState is the three-state answer a task observer may give. Timeout is a
// decision made by the poller, never by the observer.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// TaskStatus is one observation of an external task. Result is present only
// on completion; Error only on failure.
type TaskStatus struct {
	State  TaskState
	Result map[string]any
	Error  string
}
