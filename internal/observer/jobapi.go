package observer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"scenariokit/internal/model"
)

// JobAPIConfig configures the HTTP job-status observer.
type JobAPIConfig struct {
	BaseURL    string        `yaml:"base_url" validate:"required,url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	Debug      bool          `yaml:"debug"`
}

// statusResponse is the wire shape of the job API's status endpoint.
type statusResponse struct {
	State  string         `json:"state"`
	Result map[string]any `json:"result"`
	Error  string         `json:"error"`
}

// JobAPIObserver polls an external job API over HTTP. One GET per poll; the
// poller above it decides about timeouts and backoff.
type JobAPIObserver struct {
	client *resty.Client
}

// NewJobAPIObserver builds an observer against the configured job API.
func NewJobAPIObserver(cfg JobAPIConfig) *JobAPIObserver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetDebug(cfg.Debug)

	return &JobAPIObserver{client: client}
}

// GetStatus fetches one status observation for the given task.
func (o *JobAPIObserver) GetStatus(ctx context.Context, taskID, taskType string, taskParams map[string]any) (*model.TaskStatus, error) {
	var body statusResponse

	resp, err := o.client.R().
		SetContext(ctx).
		SetPathParam("task_id", taskID).
		SetQueryParam("type", taskType).
		SetResult(&body).
		Get("/tasks/{task_id}/status")
	if err != nil {
		return nil, fmt.Errorf("job status request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("job status request returned %s", resp.Status())
	}

	switch model.TaskState(body.State) {
	case model.TaskCompleted:
		return &model.TaskStatus{State: model.TaskCompleted, Result: body.Result}, nil
	case model.TaskFailed:
		return &model.TaskStatus{State: model.TaskFailed, Error: body.Error}, nil
	case model.TaskPending:
		return &model.TaskStatus{State: model.TaskPending}, nil
	default:
		return nil, fmt.Errorf("job API returned unknown state %q", body.State)
	}
}
