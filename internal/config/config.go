package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"scenariokit/internal/apiclient"
	"scenariokit/internal/observer"
	scenarioerrors "scenariokit/pkg/errors"
)

// Scenario declares one scenario run: its identity and the ordered plugin
// invocations to execute against it.
type Scenario struct {
	TestID       string       `yaml:"test_id" validate:"required,scenario_id"`
	BusinessFlow string       `yaml:"business_flow"`
	TestName     string       `yaml:"test_name"`
	Invocations  []Invocation `yaml:"invocations" validate:"required,min=1,dive"`
}

// Invocation is one plugin call within a scenario.
type Invocation struct {
	Plugin         string         `yaml:"plugin" validate:"required"`
	Params         map[string]any `yaml:"params"`
	TimeoutSeconds float64        `yaml:"timeout_seconds" validate:"gte=0"`
}

// File is the full runtime definition a host loads at startup: the scenario,
// the enabled plugins with their config blocks, and the external
// collaborators.
type File struct {
	Scenario       Scenario                  `yaml:"scenario"`
	EnabledPlugins []string                  `yaml:"enabled_plugins" validate:"required,min=1"`
	PluginConfigs  map[string]map[string]any `yaml:"plugin_configs"`
	JobAPI         *observer.JobAPIConfig    `yaml:"job_api"`
	CreationAPI    *apiclient.Config         `yaml:"creation_api"`
	BaseTempDir    string                    `yaml:"base_temp_dir"`
}

// Load reads and validates a runtime definition from a YAML file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, scenarioerrors.NewConfigError("file", fmt.Sprintf("cannot read %s", path), err)
	}

	var cfg File
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, scenarioerrors.NewConfigError("file", fmt.Sprintf("cannot parse %s", path), err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs schema and cross-field validation on the definition.
func Validate(cfg *File) error {
	if cfg == nil {
		return scenarioerrors.NewConfigError("config", "definition is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}
	if err := v.Struct(cfg.Scenario); err != nil {
		return convertValidationError(err)
	}
	if cfg.JobAPI != nil {
		if err := v.Struct(cfg.JobAPI); err != nil {
			return convertValidationError(err)
		}
	}
	if cfg.CreationAPI != nil {
		if err := v.Struct(cfg.CreationAPI); err != nil {
			return convertValidationError(err)
		}
	}

	enabled := make(map[string]struct{}, len(cfg.EnabledPlugins))
	for _, name := range cfg.EnabledPlugins {
		if _, dup := enabled[name]; dup {
			return scenarioerrors.NewConfigError("enabled_plugins", fmt.Sprintf("plugin %q listed more than once", name), nil)
		}
		enabled[name] = struct{}{}
	}

	for i, inv := range cfg.Scenario.Invocations {
		if _, ok := enabled[inv.Plugin]; !ok {
			return scenarioerrors.NewConfigError(
				fmt.Sprintf("scenario.invocations[%d].plugin", i),
				fmt.Sprintf("plugin %q is not in enabled_plugins", inv.Plugin),
				nil,
			)
		}
	}

	return nil
}
