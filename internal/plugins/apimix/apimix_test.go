package apimix

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenariokit/internal/model"
	"scenariokit/internal/plugin"
)

type fakeAPIClient struct {
	scriptResult    any
	episodeResult   any
	characterResult any
	sceneResult     any

	scriptErr    error
	episodeErr   error
	characterErr error
	sceneErr     error

	mu       sync.Mutex
	calls    atomic.Int32
	payloads map[string]map[string]any
}

func newFakeAPIClient() *fakeAPIClient {
	return &fakeAPIClient{
		scriptResult:    map[string]any{"script_id": "s-1"},
		episodeResult:   map[string]any{"episode_id": "e-1"},
		characterResult: map[string]any{"character_id": "c-1"},
		sceneResult:     map[string]any{"scene_id": "sc-1"},
		payloads:        make(map[string]map[string]any),
	}
}

func (f *fakeAPIClient) record(name string, payload map[string]any) {
	f.calls.Add(1)
	f.mu.Lock()
	f.payloads[name] = payload
	f.mu.Unlock()
}

func (f *fakeAPIClient) CreateScript(ctx context.Context, payload map[string]any) (any, error) {
	f.record("script", payload)
	return f.scriptResult, f.scriptErr
}

func (f *fakeAPIClient) CreateEpisode(ctx context.Context, payload map[string]any) (any, error) {
	f.record("episode", payload)
	return f.episodeResult, f.episodeErr
}

func (f *fakeAPIClient) CreateCharacter(ctx context.Context, payload map[string]any) (any, error) {
	f.record("character", payload)
	return f.characterResult, f.characterErr
}

func (f *fakeAPIClient) CreateScene(ctx context.Context, payload map[string]any) (any, error) {
	f.record("scene", payload)
	return f.sceneResult, f.sceneErr
}

func newTestPlugin(t *testing.T, client *fakeAPIClient) plugin.Plugin {
	t.Helper()
	services := &plugin.Services{}
	if client != nil {
		services.APIClient = client
	}
	p, err := New(nil, services)
	require.NoError(t, err)
	return p
}

func fullCreationParams() map[string]any {
	return map[string]any{
		"template": TemplateFullVideoCreation,
		"payloads": map[string]any{
			"script":  map[string]any{"title": "pilot"},
			"episode": map[string]any{"number": 1},
		},
	}
}

func TestFullVideoCreationMergesMappingResponses(t *testing.T) {
	client := newFakeAPIClient()
	p := newTestPlugin(t, client)
	scenario := model.NewScenarioContext("t-200", "video", "full creation")

	result, err := p.Execute(context.Background(), scenario, fullCreationParams())
	require.NoError(t, err)

	require.Equal(t, model.StatusCompleted, result.Status, result.Error)
	assert.Equal(t, int32(4), client.calls.Load(), "all four calls run")
	assert.Equal(t, 4, result.Metrics["calls"])

	for _, key := range []string{"script_id", "episode_id", "character_id", "scene_id"} {
		assert.Contains(t, result.Data, key)
	}

	stored, ok := scenario.TestData.Get(TemplateFullVideoCreation)
	require.True(t, ok)
	assert.Equal(t, result.Data, stored)
}

func TestNonMappingResponsesCollectUnderResults(t *testing.T) {
	client := newFakeAPIClient()
	client.sceneResult = "raw scene handle"
	p := newTestPlugin(t, client)

	result, err := p.Execute(context.Background(), nil, fullCreationParams())
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, result.Status)

	leftovers, ok := result.Data["results"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"raw scene handle"}, leftovers)
	assert.Contains(t, result.Data, "script_id")
}

func TestPayloadsAreScopedPerCall(t *testing.T) {
	client := newFakeAPIClient()
	p := newTestPlugin(t, client)

	result, err := p.Execute(context.Background(), nil, fullCreationParams())
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, result.Status)

	assert.Equal(t, map[string]any{"title": "pilot"}, client.payloads["script"])
	assert.Equal(t, map[string]any{"number": 1}, client.payloads["episode"])
	assert.Empty(t, client.payloads["character"], "missing payloads default to empty")
}

func TestAnyFailingCallLeavesTestDataUnmodified(t *testing.T) {
	client := newFakeAPIClient()
	client.episodeErr = errors.New("episode service unavailable")
	p := newTestPlugin(t, client)
	scenario := model.NewScenarioContext("t-201", "video", "partial failure")

	result, err := p.Execute(context.Background(), scenario, fullCreationParams())
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "episode call failed")
	assert.Contains(t, result.Error, "episode service unavailable")
	assert.Equal(t, int32(4), client.calls.Load(), "launched calls run to completion")
	assert.Zero(t, scenario.TestData.Len(), "no partial merge")
	assert.Empty(t, result.Data)
}

func TestUnknownTemplateIsRefused(t *testing.T) {
	p := newTestPlugin(t, newFakeAPIClient())

	result, err := p.Execute(context.Background(), nil, map[string]any{"template": "mystery"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "unknown template")
	assert.Equal(t, 0, result.Metrics["calls"])
}

func TestMissingAPIClientFailsAtCallTime(t *testing.T) {
	p := newTestPlugin(t, nil)

	result, err := p.Execute(context.Background(), nil, fullCreationParams())
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "no API client configured")
}
