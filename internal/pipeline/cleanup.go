package pipeline

import (
	"context"
	"os"
)

// CleanupStage deletes downloaded files unless keep_temp is set. Deletion is
// best-effort; whether each path still exists afterwards is always recorded
// for observability.
type CleanupStage struct {
	keepTemp bool
}

// NewCleanupStage builds the stage.
func NewCleanupStage(keepTemp bool) *CleanupStage {
	return &CleanupStage{keepTemp: keepTemp}
}

func (s *CleanupStage) Name() string { return "cleanup" }

func (s *CleanupStage) Process(ctx context.Context, data any, rc *RunContext) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, file := range rc.Files {
		if !s.keepTemp {
			// Failure to delete never aborts the pipeline.
			_ = os.Remove(file.LocalPath)
		}
		_, err := os.Stat(file.LocalPath)
		file.ExistsAfterCleanup = err == nil
	}

	return data, nil
}
