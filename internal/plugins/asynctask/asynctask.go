package asynctask

import (
	"context"
	"fmt"
	"math"
	"time"

	"scenariokit/internal/clockwork"
	"scenariokit/internal/events"
	"scenariokit/internal/model"
	"scenariokit/internal/observer"
	"scenariokit/internal/plugin"
)

const pluginName = "async_task"

// SLA holds the timeout/backoff parameters governing one polling operation.
// Out-of-range values are coerced rather than rejected so a sloppy caller
// still gets a bounded poll loop.
type SLA struct {
	TimeoutSeconds      float64
	PollIntervalSeconds float64
	BackoffFactor       float64
	MaxIntervalSeconds  float64
}

// DefaultSLA returns the stock polling parameters.
func DefaultSLA() SLA {
	return SLA{
		TimeoutSeconds:      300,
		PollIntervalSeconds: 1,
		BackoffFactor:       1.5,
		MaxIntervalSeconds:  10,
	}
}

func (s SLA) normalized() SLA {
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = DefaultSLA().TimeoutSeconds
	}
	if s.PollIntervalSeconds <= 0 {
		s.PollIntervalSeconds = 0.1
	}
	if s.BackoffFactor < 1.0 {
		s.BackoffFactor = 1.0
	}
	if s.MaxIntervalSeconds <= 0 {
		s.MaxIntervalSeconds = s.PollIntervalSeconds
	}
	return s
}

// Plugin polls a long-running external task to completion under an SLA. A
// linear state machine per invocation: waiting, then exactly one of
// completed, failed or timeout. The injected clock's Sleep is the only
// suspension point, which keeps the whole machine testable without real time.
type Plugin struct {
	defaults SLA
	bus      *events.Bus
	observer observer.TaskObserver
	clock    clockwork.Clock
}

var _ plugin.Plugin = (*Plugin)(nil)

// New is the factory registered with the plugin manager. Config may override
// the default SLA via timeout_seconds, poll_interval_seconds, backoff_factor
// and max_interval_seconds keys. A missing observer is tolerated here and
// reported at call time.
func New(config map[string]any, services *plugin.Services) (plugin.Plugin, error) {
	p := &Plugin{defaults: slaFromMapping(config, DefaultSLA())}
	if services != nil {
		p.bus = services.EventBus
		p.observer = services.Observer
		p.clock = services.Clock
	}
	if p.clock == nil {
		p.clock = clockwork.New()
	}
	return p, nil
}

func (p *Plugin) Name() string { return pluginName }

func (p *Plugin) Capabilities() []string {
	return []string{"async_task.wait"}
}

// Execute waits for the task named in params to leave the pending state.
//
// Params:
//
//	task_id     non-empty string, required
//	task_type   non-empty string, required
//	task_params optional mapping forwarded to the observer
//	sla         optional mapping overriding the configured SLA
//	observer    optional TaskObserver overriding the injected one
func (p *Plugin) Execute(ctx context.Context, scenario *model.ScenarioContext, params map[string]any) (*model.PluginResult, error) {
	req, obs, sla, err := p.parse(params)
	if err != nil {
		return model.FailedResult(err.Error(), map[string]any{"attempts": 0}), nil
	}

	correlation := ""
	if scenario != nil {
		correlation = scenario.TestID
	}
	p.emit("task.started", map[string]any{
		"task_id":   req.taskID,
		"task_type": req.taskType,
	}, correlation)

	start := p.clock.Now()
	interval := sla.PollIntervalSeconds
	attempts := 0

	for {
		attempts++
		status, err := obs.GetStatus(ctx, req.taskID, req.taskType, req.taskParams)
		if err != nil {
			p.emit("task.failed", map[string]any{
				"task_id": req.taskID,
				"error":   err.Error(),
			}, correlation)
			return model.FailedResult(err.Error(), map[string]any{"attempts": attempts}), nil
		}

		switch status.State {
		case model.TaskCompleted:
			elapsed := p.clock.Now().Sub(start).Seconds()
			metrics := map[string]any{
				"attempts":        attempts,
				"elapsed_seconds": elapsed,
				"final_state":     string(model.TaskCompleted),
			}
			p.emit("task.completed", map[string]any{
				"task_id":         req.taskID,
				"attempts":        attempts,
				"elapsed_seconds": elapsed,
			}, correlation)
			return model.CompletedResult(anyMap(status.Result), metrics), nil

		case model.TaskFailed:
			p.emit("task.failed", map[string]any{
				"task_id": req.taskID,
				"error":   status.Error,
			}, correlation)
			return model.FailedResult(status.Error, map[string]any{"attempts": attempts}), nil
		}

		elapsed := p.clock.Now().Sub(start).Seconds()
		if elapsed >= sla.TimeoutSeconds {
			p.emit("task.timeout", map[string]any{
				"task_id":         req.taskID,
				"attempts":        attempts,
				"elapsed_seconds": elapsed,
			}, correlation)
			metrics := map[string]any{
				"attempts":        attempts,
				"elapsed_seconds": elapsed,
				"final_state":     string(model.StatusTimeout),
			}
			return model.TimeoutResult(fmt.Sprintf("任务超时: %s", req.taskID), metrics), nil
		}

		if err := p.clock.Sleep(ctx, secondsToDuration(interval)); err != nil {
			return model.FailedResult(fmt.Sprintf("polling aborted: %v", err), map[string]any{"attempts": attempts}), nil
		}
		interval = math.Min(sla.MaxIntervalSeconds, interval*sla.BackoffFactor)
	}
}

type request struct {
	taskID     string
	taskType   string
	taskParams map[string]any
}

func (p *Plugin) parse(params map[string]any) (request, observer.TaskObserver, SLA, error) {
	var req request

	id, ok := params["task_id"]
	if !ok {
		return req, nil, SLA{}, fmt.Errorf("task_id is required")
	}
	req.taskID, ok = id.(string)
	if !ok || req.taskID == "" {
		return req, nil, SLA{}, fmt.Errorf("task_id must be a non-empty string, got %v", id)
	}

	typ, ok := params["task_type"]
	if !ok {
		return req, nil, SLA{}, fmt.Errorf("task_type is required")
	}
	req.taskType, ok = typ.(string)
	if !ok || req.taskType == "" {
		return req, nil, SLA{}, fmt.Errorf("task_type must be a non-empty string, got %v", typ)
	}

	if raw, present := params["task_params"]; present {
		req.taskParams, ok = raw.(map[string]any)
		if !ok {
			return req, nil, SLA{}, fmt.Errorf("task_params must be a mapping, got %T", raw)
		}
	}

	sla := p.defaults
	if raw, present := params["sla"]; present {
		mapping, ok := raw.(map[string]any)
		if !ok {
			return req, nil, SLA{}, fmt.Errorf("sla must be a mapping, got %T", raw)
		}
		sla = slaFromMapping(mapping, p.defaults)
	}

	obs := p.observer
	if raw, present := params["observer"]; present {
		obs, ok = raw.(observer.TaskObserver)
		if !ok {
			return req, nil, SLA{}, fmt.Errorf("observer param does not implement TaskObserver")
		}
	}
	if obs == nil {
		return req, nil, SLA{}, fmt.Errorf("no task observer configured")
	}

	return req, obs, sla.normalized(), nil
}

func (p *Plugin) emit(eventType string, data map[string]any, correlationID string) {
	// Telemetry must never abort the task outcome.
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventType, data, pluginName, correlationID)
}

func slaFromMapping(m map[string]any, base SLA) SLA {
	out := base
	if v, ok := numberField(m, "timeout_seconds"); ok {
		out.TimeoutSeconds = v
	}
	if v, ok := numberField(m, "poll_interval_seconds"); ok {
		out.PollIntervalSeconds = v
	}
	if v, ok := numberField(m, "backoff_factor"); ok {
		out.BackoffFactor = v
	}
	if v, ok := numberField(m, "max_interval_seconds"); ok {
		out.MaxIntervalSeconds = v
	}
	return out
}

func numberField(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
