package model

// Status is the closed set of outcomes a plugin may report. No partial or
// unknown state is allowed to leak out of a plugin.
type Status string

const (
	// StatusCompleted indicates the plugin finished and produced its outputs.
	StatusCompleted Status = "completed"
	// StatusFailed indicates a configuration error or a terminal failure.
	StatusFailed Status = "failed"
	// StatusTimeout indicates an SLA breach while waiting on external work.
	StatusTimeout Status = "timeout"
)

// PluginResult is the uniform return envelope every plugin produces. Metrics
// are always present, even on failure, so telemetry pipelines never see a
// gap. Treat a constructed result as immutable.
type PluginResult struct {
	Status  Status
	Data    map[string]any
	Error   string
	Metrics map[string]any
}

// CompletedResult builds a successful result.
func CompletedResult(data, metrics map[string]any) *PluginResult {
	return &PluginResult{
		Status:  StatusCompleted,
		Data:    ensureMap(data),
		Metrics: ensureMap(metrics),
	}
}

// FailedResult builds a failed result. Data is always empty on failure.
func FailedResult(errMsg string, metrics map[string]any) *PluginResult {
	return &PluginResult{
		Status:  StatusFailed,
		Data:    map[string]any{},
		Error:   errMsg,
		Metrics: ensureMap(metrics),
	}
}

// TimeoutResult builds a result for an SLA breach, distinct from failure so
// callers can choose to retry rather than give up.
func TimeoutResult(errMsg string, metrics map[string]any) *PluginResult {
	return &PluginResult{
		Status:  StatusTimeout,
		Data:    map[string]any{},
		Error:   errMsg,
		Metrics: ensureMap(metrics),
	}
}

func ensureMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
