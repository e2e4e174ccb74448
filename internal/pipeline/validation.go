package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// ValidationStage applies named rules against the just-downloaded file.
// Supported rules are size_equals (exact byte count) and sha256 (content
// digest); unknown rule keys are ignored. No rules at all means the file is
// valid by default.
type ValidationStage struct {
	rules map[string]any
}

// NewValidationStage builds the stage over the given rule mapping.
func NewValidationStage(rules map[string]any) *ValidationStage {
	return &ValidationStage{rules: rules}
}

func (s *ValidationStage) Name() string { return "validation" }

func (s *ValidationStage) Process(ctx context.Context, data any, rc *RunContext) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file := rc.LastFile()
	if file == nil {
		return nil, fmt.Errorf("no file available to validate")
	}

	report := &ValidationReport{IsValid: true}

	if expected, ok := s.rules["size_equals"]; ok {
		report.add(s.checkSize(file, expected))
	}
	if expected, ok := s.rules["sha256"]; ok {
		report.add(s.checkDigest(file, expected))
	}

	rc.Validation = report
	return data, nil
}

func (r *ValidationReport) add(check ValidationCheck) {
	r.Results = append(r.Results, check)
	if check.Status != CheckPassed {
		r.IsValid = false
	}
}

func (s *ValidationStage) checkSize(file *FileInfo, expected any) ValidationCheck {
	want, ok := asInt64(expected)
	if !ok {
		return ValidationCheck{
			Type:    "size_equals",
			Status:  CheckFailed,
			Message: fmt.Sprintf("rule value %v is not an integer", expected),
		}
	}

	info, err := os.Stat(file.LocalPath)
	if err != nil {
		return ValidationCheck{Type: "size_equals", Status: CheckFailed, Message: err.Error()}
	}
	if info.Size() != want {
		return ValidationCheck{
			Type:    "size_equals",
			Status:  CheckFailed,
			Message: fmt.Sprintf("size is %d bytes, expected %d", info.Size(), want),
		}
	}
	return ValidationCheck{
		Type:    "size_equals",
		Status:  CheckPassed,
		Message: fmt.Sprintf("size matches %d bytes", want),
	}
}

func (s *ValidationStage) checkDigest(file *FileInfo, expected any) ValidationCheck {
	want, ok := expected.(string)
	if !ok {
		return ValidationCheck{
			Type:    "sha256",
			Status:  CheckFailed,
			Message: fmt.Sprintf("rule value %v is not a hex digest", expected),
		}
	}

	got, err := hashFile(file.LocalPath)
	if err != nil {
		return ValidationCheck{Type: "sha256", Status: CheckFailed, Message: err.Error()}
	}
	if !strings.EqualFold(got, want) {
		return ValidationCheck{
			Type:    "sha256",
			Status:  CheckFailed,
			Message: fmt.Sprintf("digest %s does not match expected %s", got, want),
		}
	}
	return ValidationCheck{Type: "sha256", Status: CheckPassed, Message: "digest matches"}
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

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
