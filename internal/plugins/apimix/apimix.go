package apimix

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Jeffail/gabs/v2"

	"scenariokit/internal/apiclient"
	"scenariokit/internal/model"
	"scenariokit/internal/plugin"
)

const (
	pluginName = "api_mixing"

	// TemplateFullVideoCreation fans a scenario's preparatory data out to the
	// four creation calls and merges their responses.
	TemplateFullVideoCreation = "full_video_creation"
)

type apiCall struct {
	name   string
	invoke func(apiclient.Client, context.Context, map[string]any) (any, error)
}

// Call order is fixed so merge results stay deterministic.
var fullVideoCreationCalls = []apiCall{
	{"script", func(c apiclient.Client, ctx context.Context, p map[string]any) (any, error) { return c.CreateScript(ctx, p) }},
	{"episode", func(c apiclient.Client, ctx context.Context, p map[string]any) (any, error) { return c.CreateEpisode(ctx, p) }},
	{"character", func(c apiclient.Client, ctx context.Context, p map[string]any) (any, error) { return c.CreateCharacter(ctx, p) }},
	{"scene", func(c apiclient.Client, ctx context.Context, p map[string]any) (any, error) { return c.CreateScene(ctx, p) }},
}

// Plugin runs a named template that invokes several API calls in parallel and
// merges their responses into the scenario's test data. Constructing the
// plugin without an API client succeeds; execution then fails with a
// diagnosable configuration error.
type Plugin struct {
	client apiclient.Client
}

var _ plugin.Plugin = (*Plugin)(nil)

// New is the factory registered with the plugin manager.
func New(_ map[string]any, services *plugin.Services) (plugin.Plugin, error) {
	p := &Plugin{}
	if services != nil {
		p.client = services.APIClient
	}
	return p, nil
}

func (p *Plugin) Name() string { return pluginName }

func (p *Plugin) Capabilities() []string {
	return []string{"api.mix"}
}

// Execute runs the template named by params["template"] with per-call
// payloads from params["payloads"]. All calls run concurrently and all must
// succeed; on any failure the scenario's test data is left unmodified.
func (p *Plugin) Execute(ctx context.Context, scenario *model.ScenarioContext, params map[string]any) (*model.PluginResult, error) {
	template, _ := params["template"].(string)
	if template != TemplateFullVideoCreation {
		return model.FailedResult(fmt.Sprintf("unknown template: %q", template), map[string]any{"calls": 0}), nil
	}
	if p.client == nil {
		return model.FailedResult("no API client configured", map[string]any{"calls": 0}), nil
	}

	payloads, _ := params["payloads"].(map[string]any)

	start := time.Now()
	results := make([]any, len(fullVideoCreationCalls))
	errs := make([]error, len(fullVideoCreationCalls))

	// Once launched, the calls run to completion; there is no mid-flight
	// cancellation of an individual call.
	var wg sync.WaitGroup
	for i, call := range fullVideoCreationCalls {
		wg.Add(1)
		go func(i int, call apiCall) {
			defer wg.Done()
			payload, _ := payloads[call.name].(map[string]any)
			if payload == nil {
				payload = map[string]any{}
			}
			results[i], errs[i] = call.invoke(p.client, ctx, payload)
		}(i, call)
	}
	wg.Wait()

	metrics := map[string]any{
		"calls":           len(fullVideoCreationCalls),
		"elapsed_seconds": time.Since(start).Seconds(),
	}

	for i, err := range errs {
		if err != nil {
			msg := fmt.Sprintf("%s call failed: %v", fullVideoCreationCalls[i].name, err)
			return model.FailedResult(msg, metrics), nil
		}
	}

	merged, err := mergeResponses(results)
	if err != nil {
		return model.FailedResult(err.Error(), metrics), nil
	}

	if scenario != nil {
		if err := scenario.TestData.Merge(TemplateFullVideoCreation, merged); err != nil {
			return model.FailedResult(err.Error(), metrics), nil
		}
	}

	return model.CompletedResult(merged, metrics), nil
}

// mergeResponses shallow-merges mapping-shaped results into one mapping and
// appends everything else to a results list under the merged output.
func mergeResponses(results []any) (map[string]any, error) {
	container := gabs.New()
	var leftovers []any

	for _, result := range results {
		if mapping, ok := result.(map[string]any); ok {
			if err := container.Merge(gabs.Wrap(mapping)); err != nil {
				return nil, fmt.Errorf("merging API responses: %w", err)
			}
			continue
		}
		leftovers = append(leftovers, result)
	}

	for _, value := range leftovers {
		if err := container.ArrayAppend(value, "results"); err != nil {
			return nil, fmt.Errorf("collecting non-mapping responses: %w", err)
		}
	}

	merged, ok := container.Data().(map[string]any)
	if !ok {
		merged = map[string]any{}
	}
	return merged, nil
}
