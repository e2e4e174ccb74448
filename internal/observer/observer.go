package observer

import (
	"context"
	"sync"

	"scenariokit/internal/model"
)

// TaskObserver is a pollable status source for long-running external tasks.
// Real implementations query an external job API; SequenceObserver replays a
// scripted list of statuses for deterministic tests.
type TaskObserver interface {
	GetStatus(ctx context.Context, taskID, taskType string, taskParams map[string]any) (*model.TaskStatus, error)
}

// SequenceObserver replays a fixed sequence of statuses. Once the sequence is
// exhausted the last entry repeats forever, so a scripted "pending, pending,
// completed" tail stays completed on further polls.
type SequenceObserver struct {
	mu       sync.Mutex
	statuses []model.TaskStatus
	index    int
	calls    int
}

// NewSequenceObserver creates an observer over the given statuses. The
// sequence must be non-empty.
func NewSequenceObserver(statuses ...model.TaskStatus) *SequenceObserver {
	return &SequenceObserver{statuses: statuses}
}

// GetStatus returns the next scripted status.
func (o *SequenceObserver) GetStatus(_ context.Context, _, _ string, _ map[string]any) (*model.TaskStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls++
	status := o.statuses[o.index]
	if o.index < len(o.statuses)-1 {
		o.index++
	}
	return &status, nil
}

// Calls reports how many times GetStatus has been invoked.
func (o *SequenceObserver) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}
