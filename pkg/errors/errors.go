package errors

import (
	"fmt"
)

// ConfigError captures malformed parameters or missing collaborators detected
// before any asynchronous work starts.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

// NewConfigError constructs a ConfigError.
func NewConfigError(field, message string, err error) error {
	return &ConfigError{Field: field, Message: message, Err: err}
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExecutionError represents a runtime failure while executing a plugin or
// pipeline stage.
type ExecutionError struct {
	Op  string
	Err error
}

// NewExecutionError constructs an ExecutionError for the given operation.
func NewExecutionError(op string, err error) error {
	return &ExecutionError{Op: op, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("execution error in %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PluginError indicates issues within plugin registration or lookup.
type PluginError struct {
	Plugin  string
	Message string
	Err     error
}

// NewPluginError constructs a PluginError for the named plugin.
func NewPluginError(plugin string, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &PluginError{Plugin: plugin, Message: message, Err: err}
}

func (e *PluginError) Error() string {
	if e == nil {
		return ""
	}
	if e.Plugin != "" {
		return fmt.Sprintf("plugin error [%s]: %s", e.Plugin, e.Message)
	}
	return fmt.Sprintf("plugin error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *PluginError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TimeoutError signals that a blocking dispatch exceeded its wall-clock
// deadline. Distinct from an SLA timeout, which is reported inside a
// PluginResult rather than as an error.
type TimeoutError struct {
	Op      string
	Elapsed string
}

// NewTimeoutError constructs a TimeoutError.
func NewTimeoutError(op, elapsed string) error {
	return &TimeoutError{Op: op, Elapsed: elapsed}
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return ""
	}
	if e.Elapsed != "" {
		return fmt.Sprintf("timeout: %s exceeded %s", e.Op, e.Elapsed)
	}
	return fmt.Sprintf("timeout: %s", e.Op)
}
