package pipeline

import (
	"context"
	"time"

	"scenariokit/internal/logger"
)

// FileInfo describes one file moved through the pipeline. Stages append
// flags as they run; cleanup always records whether the path survived.
type FileInfo struct {
	LocalPath          string
	Size               int64
	Filename           string
	ExistsAfterCleanup bool
}

// ValidationCheck is one rule's outcome inside a validation report.
type ValidationCheck struct {
	Type    string
	Status  string
	Message string
}

const (
	CheckPassed = "passed"
	CheckFailed = "failed"
)

// ValidationReport aggregates rule outcomes. IsValid is the conjunction of
// all rule outcomes, vacuously true when no rules ran.
type ValidationReport struct {
	Results []ValidationCheck
	IsValid bool
}

// RunContext is the shared accumulator one pipeline run threads through its
// stages: the file list, the validation report and per-stage metrics.
type RunContext struct {
	Files      []*FileInfo
	Validation *ValidationReport
	Metrics    map[string]float64
}

// NewRunContext returns an empty accumulator.
func NewRunContext() *RunContext {
	return &RunContext{Metrics: make(map[string]float64)}
}

// LastFile returns the most recently recorded file, or nil.
func (rc *RunContext) LastFile() *FileInfo {
	if len(rc.Files) == 0 {
		return nil
	}
	return rc.Files[len(rc.Files)-1]
}

// Stage is one step of a pipeline: it transforms a value and contributes to
// the shared run context.
type Stage interface {
	Name() string
	Process(ctx context.Context, data any, rc *RunContext) (any, error)
}

// Result is the outcome of one pipeline run. Success is true only when the
// terminal validation stage reported the data as valid. Partial progress
// (already-downloaded files) is reported even when a stage failed, so a
// caller can still clean up.
type Result struct {
	Success    bool
	Files      []FileInfo
	Validation *ValidationReport
	Metrics    map[string]float64
	Error      string
}

// Pipeline executes an ordered list of stages, feeding each stage's output
// into the next. The first stage to fail stops the run.
type Pipeline struct {
	stages []Stage
	log    *logger.Logger
}

// New builds a pipeline over the given stages in declared order.
func New(log *logger.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, log: log.WithComponent("pipeline")}
}

// Execute runs the stages against the initial data. Per-stage elapsed
// seconds and a total are accumulated into the result metrics.
func (p *Pipeline) Execute(ctx context.Context, data any) *Result {
	rc := NewRunContext()
	totalStart := time.Now()

	for _, stage := range p.stages {
		stageStart := time.Now()
		next, err := stage.Process(ctx, data, rc)
		rc.Metrics[stage.Name()] = time.Since(stageStart).Seconds()

		if err != nil {
			p.log.Error(err, "stage "+stage.Name()+" failed")
			rc.Metrics["total"] = time.Since(totalStart).Seconds()
			return p.result(rc, err.Error())
		}
		data = next
	}

	rc.Metrics["total"] = time.Since(totalStart).Seconds()
	return p.result(rc, "")
}

func (p *Pipeline) result(rc *RunContext, errMsg string) *Result {
	files := make([]FileInfo, 0, len(rc.Files))
	for _, f := range rc.Files {
		files = append(files, *f)
	}

	success := errMsg == "" && rc.Validation != nil && rc.Validation.IsValid
	return &Result{
		Success:    success,
		Files:      files,
		Validation: rc.Validation,
		Metrics:    rc.Metrics,
		Error:      errMsg,
	}
}
