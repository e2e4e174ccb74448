package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DownloadConfig configures the download stage.
type DownloadConfig struct {
	TempDir string
	MaxSize int64
}

// DownloadStage resolves a described file into local storage. The input must
// be a mapping describing the file by exactly one of an existing local path,
// raw content, or a source path to copy into the temp directory.
type DownloadStage struct {
	cfg DownloadConfig
}

// NewDownloadStage builds the stage; an empty temp dir falls back to the OS
// temp directory.
func NewDownloadStage(cfg DownloadConfig) *DownloadStage {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &DownloadStage{cfg: cfg}
}

func (s *DownloadStage) Name() string { return "download" }

func (s *DownloadStage) Process(ctx context.Context, data any, rc *RunContext) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	desc, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("download input must be a mapping, got %T", data)
	}

	localPath, hasLocal := stringField(desc, "local_path")
	content, hasContent := contentField(desc)
	sourcePath, hasSource := stringField(desc, "source_path")

	forms := 0
	for _, present := range []bool{hasLocal, hasContent, hasSource} {
		if present {
			forms++
		}
	}
	if forms != 1 {
		return nil, fmt.Errorf("file descriptor must carry exactly one of local_path, content, source_path (got %d)", forms)
	}

	var resolved string
	switch {
	case hasLocal:
		info, err := os.Stat(localPath)
		if err != nil {
			return nil, fmt.Errorf("local_path %s does not resolve to a file: %w", localPath, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("local_path %s is a directory", localPath)
		}
		resolved = localPath

	case hasContent:
		name, _ := stringField(desc, "filename")
		if name == "" {
			name = "download.bin"
		}
		path := filepath.Join(s.cfg.TempDir, name)
		if err := os.MkdirAll(s.cfg.TempDir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create temp dir: %w", err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return nil, fmt.Errorf("cannot write content to %s: %w", path, err)
		}
		resolved = path

	case hasSource:
		if _, err := os.Stat(sourcePath); err != nil {
			return nil, fmt.Errorf("source_path %s does not resolve to a file: %w", sourcePath, err)
		}
		path := filepath.Join(s.cfg.TempDir, filepath.Base(sourcePath))
		if err := os.MkdirAll(s.cfg.TempDir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create temp dir: %w", err)
		}
		if err := copyFile(sourcePath, path); err != nil {
			return nil, fmt.Errorf("cannot copy %s: %w", sourcePath, err)
		}
		resolved = path
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("resolved file vanished: %w", err)
	}
	if s.cfg.MaxSize > 0 && info.Size() > s.cfg.MaxSize {
		return nil, fmt.Errorf("file %s is %d bytes, exceeding the %d byte limit", resolved, info.Size(), s.cfg.MaxSize)
	}

	rc.Files = append(rc.Files, &FileInfo{
		LocalPath: resolved,
		Size:      info.Size(),
		Filename:  filepath.Base(resolved),
	})

	desc["local_path"] = resolved
	return desc, nil
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func contentField(m map[string]any) ([]byte, bool) {
	v, ok := m["content"]
	if !ok {
		return nil, false
	}
	switch c := v.(type) {
	case []byte:
		return c, true
	case string:
		return []byte(c), true
	default:
		return nil, false
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
