package fileproc

import (
	"context"
	"fmt"
	"path/filepath"

	"scenariokit/internal/events"
	"scenariokit/internal/logger"
	"scenariokit/internal/model"
	"scenariokit/internal/pipeline"
	"scenariokit/internal/plugin"
)

const pluginName = "file_processing"

// Plugin moves a described file through a download, validate, cleanup
// pipeline and reports the pipeline's outcome as a plugin result.
type Plugin struct {
	maxSize     int64
	keepTemp    bool
	rules       map[string]any
	baseTempDir string
	bus         *events.Bus
	log         *logger.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

// New is the factory registered with the plugin manager. Config keys:
// max_size (bytes), keep_temp, validation_rules (mapping). The base temp
// directory comes from services.
func New(config map[string]any, services *plugin.Services) (plugin.Plugin, error) {
	p := &Plugin{}

	if v, ok := config["max_size"]; ok {
		size, ok := asInt64(v)
		if !ok || size < 0 {
			return nil, fmt.Errorf("max_size must be a non-negative integer, got %v", v)
		}
		p.maxSize = size
	}
	if v, ok := config["keep_temp"].(bool); ok {
		p.keepTemp = v
	}
	if v, ok := config["validation_rules"].(map[string]any); ok {
		p.rules = v
	}

	if services != nil {
		p.baseTempDir = services.BaseTempDir
		p.bus = services.EventBus
		p.log = services.Logger
	}
	p.log = p.log.WithComponent(pluginName)

	return p, nil
}

func (p *Plugin) Name() string { return pluginName }

func (p *Plugin) Capabilities() []string {
	return []string{"file.download", "file.validate", "file.cleanup"}
}

// Execute processes the file described by params["file"]. Params may
// override keep_temp, max_size and validation_rules per invocation.
func (p *Plugin) Execute(ctx context.Context, scenario *model.ScenarioContext, params map[string]any) (*model.PluginResult, error) {
	descriptor, ok := params["file"].(map[string]any)
	if !ok {
		return model.FailedResult("file param must be a mapping describing the file", map[string]any{"stages_run": 0}), nil
	}

	maxSize := p.maxSize
	if v, ok := params["max_size"]; ok {
		if size, ok := asInt64(v); ok && size >= 0 {
			maxSize = size
		}
	}
	keepTemp := p.keepTemp
	if v, ok := params["keep_temp"].(bool); ok {
		keepTemp = v
	}
	rules := p.rules
	if v, ok := params["validation_rules"].(map[string]any); ok {
		rules = v
	}

	correlation := ""
	tempDir := p.baseTempDir
	if scenario != nil {
		correlation = scenario.TestID
		tempDir = filepath.Join(p.baseTempDir, scenario.TestID)
	}

	p.emit("file.download_started", map[string]any{
		"filename": descriptor["filename"],
	}, correlation)

	pipe := pipeline.New(p.log,
		pipeline.NewDownloadStage(pipeline.DownloadConfig{TempDir: tempDir, MaxSize: maxSize}),
		pipeline.NewValidationStage(rules),
		pipeline.NewCleanupStage(keepTemp),
	)
	res := pipe.Execute(ctx, descriptor)

	metrics := make(map[string]any, len(res.Metrics))
	for stage, seconds := range res.Metrics {
		metrics[stage] = seconds
	}

	if res.Error != "" {
		// Partial progress rides on the event so a consumer can still
		// clean up already-downloaded files.
		p.emit("file.processing_failed", map[string]any{
			"error": res.Error,
			"files": fileMaps(res.Files),
		}, correlation)
		return model.FailedResult(res.Error, metrics), nil
	}

	data := map[string]any{
		"files":              fileMaps(res.Files),
		"validation_report":  reportMap(res.Validation),
		"processing_metrics": res.Metrics,
	}

	p.emit("file.download_completed", map[string]any{
		"file_count": len(res.Files),
		"is_valid":   res.Success,
	}, correlation)

	if scenario != nil {
		scenario.TestData.Set("file_processing_result", data)
	}

	return model.CompletedResult(data, metrics), nil
}

func (p *Plugin) emit(eventType string, data map[string]any, correlationID string) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventType, data, pluginName, correlationID)
}

func fileMaps(files []pipeline.FileInfo) []map[string]any {
	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		out = append(out, map[string]any{
			"local_path":           f.LocalPath,
			"size":                 f.Size,
			"filename":             f.Filename,
			"exists_after_cleanup": f.ExistsAfterCleanup,
		})
	}
	return out
}

func reportMap(report *pipeline.ValidationReport) map[string]any {
	if report == nil {
		return map[string]any{"validation_results": []map[string]any{}, "is_valid": false}
	}
	results := make([]map[string]any, 0, len(report.Results))
	for _, check := range report.Results {
		results = append(results, map[string]any{
			"type":    check.Type,
			"status":  check.Status,
			"message": check.Message,
		})
	}
	return map[string]any{
		"validation_results": results,
		"is_valid":           report.IsValid,
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
