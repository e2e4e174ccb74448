package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scenarioerrors "scenariokit/pkg/errors"
)

const validDefinition = `
scenario:
  test_id: video-smoke-001
  business_flow: video_creation
  test_name: render and verify
  invocations:
    - plugin: api_mixing
      params:
        template: full_video_creation
    - plugin: async_task
      timeout_seconds: 330
      params:
        task_id: render-1
        task_type: video_render
        sla:
          timeout_seconds: 300
          poll_interval_seconds: 1
enabled_plugins:
  - api_mixing
  - async_task
plugin_configs:
  async_task:
    timeout_seconds: 120
job_api:
  base_url: https://jobs.internal.example
creation_api:
  base_url: https://creation.internal.example
base_temp_dir: /tmp/scenariokit
`

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidDefinition(t *testing.T) {
	cfg, err := Load(writeDefinition(t, validDefinition))
	require.NoError(t, err)

	assert.Equal(t, "video-smoke-001", cfg.Scenario.TestID)
	assert.Equal(t, "video_creation", cfg.Scenario.BusinessFlow)
	require.Len(t, cfg.Scenario.Invocations, 2)
	assert.Equal(t, "api_mixing", cfg.Scenario.Invocations[0].Plugin)
	assert.Equal(t, 330.0, cfg.Scenario.Invocations[1].TimeoutSeconds)
	assert.Equal(t, []string{"api_mixing", "async_task"}, cfg.EnabledPlugins)
	require.NotNil(t, cfg.JobAPI)
	assert.Equal(t, "https://jobs.internal.example", cfg.JobAPI.BaseURL)
	require.NotNil(t, cfg.CreationAPI)
	assert.Equal(t, "/tmp/scenariokit", cfg.BaseTempDir)

	params := cfg.Scenario.Invocations[1].Params
	sla, ok := params["sla"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 300, sla["timeout_seconds"])
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	var cfgErr *scenarioerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadMalformedYAMLFails(t *testing.T) {
	_, err := Load(writeDefinition(t, "scenario: [unclosed"))
	require.Error(t, err)
}

func TestValidateRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *File)
		wantMsg string
	}{
		{
			name:    "missing test id",
			mutate:  func(cfg *File) { cfg.Scenario.TestID = "" },
			wantMsg: "required",
		},
		{
			name:    "invalid test id characters",
			mutate:  func(cfg *File) { cfg.Scenario.TestID = "bad id with spaces" },
			wantMsg: "scenario_id",
		},
		{
			name:    "no invocations",
			mutate:  func(cfg *File) { cfg.Scenario.Invocations = nil },
			wantMsg: "required",
		},
		{
			name:    "no enabled plugins",
			mutate:  func(cfg *File) { cfg.EnabledPlugins = nil },
			wantMsg: "required",
		},
		{
			name: "duplicate enabled plugin",
			mutate: func(cfg *File) {
				cfg.EnabledPlugins = append(cfg.EnabledPlugins, cfg.EnabledPlugins[0])
			},
			wantMsg: "more than once",
		},
		{
			name: "invocation of disabled plugin",
			mutate: func(cfg *File) {
				cfg.Scenario.Invocations[0].Plugin = "file_processing"
			},
			wantMsg: "not in enabled_plugins",
		},
		{
			name: "job api without base url",
			mutate: func(cfg *File) {
				cfg.JobAPI.BaseURL = ""
			},
			wantMsg: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeDefinition(t, validDefinition))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
