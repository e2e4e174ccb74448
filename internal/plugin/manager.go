package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"scenariokit/internal/logger"
	"scenariokit/internal/model"
	scenarioerrors "scenariokit/pkg/errors"
)

// Manager turns a declarative list of enabled plugin names, per-plugin config
// and a services bundle into live plugin instances, and dispatches execution
// by name.
//
// Load-failure policy: skip-and-report. A plugin whose factory fails is
// omitted from the registry; every failure is logged and reported back as one
// joined error while the remaining plugins load normally.
type Manager struct {
	mu          sync.RWMutex
	factories   map[string]Factory
	plugins     map[string]Plugin
	descriptors map[string]Descriptor
	log         *logger.Logger
}

// NewManager returns an empty manager.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		factories:   make(map[string]Factory),
		plugins:     make(map[string]Plugin),
		descriptors: make(map[string]Descriptor),
		log:         log.WithComponent("plugin_manager"),
	}
}

// RegisterFactory maps a plugin name to its constructor. The host process
// populates this registry explicitly at startup; there is no dynamic import.
func (m *Manager) RegisterFactory(name string, factory Factory) error {
	if name == "" {
		return scenarioerrors.NewPluginError("", fmt.Errorf("factory name is empty"))
	}
	if factory == nil {
		return scenarioerrors.NewPluginError(name, fmt.Errorf("factory is nil"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.factories[name]; exists {
		return scenarioerrors.NewPluginError(name, fmt.Errorf("factory already registered"))
	}
	m.factories[name] = factory
	return nil
}

// LoadPlugins constructs each enabled plugin via its registered factory and
// registers it under its declared name. Missing factories and failing
// constructors are skipped and returned joined; the rest of the registry
// stays valid.
func (m *Manager) LoadPlugins(enabled []string, configs map[string]map[string]any, services *Services) error {
	var loadErrs []error

	for _, name := range enabled {
		m.mu.RLock()
		factory, ok := m.factories[name]
		m.mu.RUnlock()
		if !ok {
			err := scenarioerrors.NewPluginError(name, fmt.Errorf("no factory registered"))
			m.log.Error(err, "skipping plugin")
			loadErrs = append(loadErrs, err)
			continue
		}

		instance, err := factory(configs[name], services)
		if err != nil {
			wrapped := scenarioerrors.NewPluginError(name, err)
			m.log.Error(wrapped, "plugin factory failed, skipping")
			loadErrs = append(loadErrs, wrapped)
			continue
		}

		declared := instance.Name()
		m.mu.Lock()
		if _, exists := m.plugins[declared]; exists {
			m.mu.Unlock()
			err := scenarioerrors.NewPluginError(declared, fmt.Errorf("already loaded"))
			m.log.Error(err, "skipping duplicate plugin")
			loadErrs = append(loadErrs, err)
			continue
		}
		m.plugins[declared] = instance
		m.descriptors[declared] = Descriptor{
			Name:         declared,
			Capabilities: append([]string(nil), instance.Capabilities()...),
			LoadedAt:     time.Now(),
		}
		m.mu.Unlock()

		m.log.WithFields(map[string]any{"plugin": declared}).Debug("plugin loaded")
	}

	return errors.Join(loadErrs...)
}

// ListPlugins returns a snapshot of the loaded plugin descriptors keyed by
// name.
func (m *Manager) ListPlugins() map[string]Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Descriptor, len(m.descriptors))
	for name, desc := range m.descriptors {
		out[name] = desc
	}
	return out
}

// ExecutePlugin looks up the named plugin and dispatches to it. An unknown
// name is a configuration error surfaced as a failed result. The plugin's
// result passes through unchanged; the manager never mutates it. A non-nil
// error indicates a defect in the plugin, not an expected failure mode.
func (m *Manager) ExecutePlugin(ctx context.Context, name string, scenario *model.ScenarioContext, params map[string]any) (*model.PluginResult, error) {
	m.mu.RLock()
	instance, ok := m.plugins[name]
	m.mu.RUnlock()
	if !ok {
		return model.FailedResult(fmt.Sprintf("plugin not found: %s", name), nil), nil
	}

	return instance.Execute(ctx, scenario, params)
}

// UnloadPlugins calls each plugin's optional teardown hook and clears the
// registry. Teardown errors are logged and never propagated.
func (m *Manager) UnloadPlugins(ctx context.Context) {
	m.mu.Lock()
	plugins := m.plugins
	m.plugins = make(map[string]Plugin)
	m.descriptors = make(map[string]Descriptor)
	m.mu.Unlock()

	for name, instance := range plugins {
		unloader, ok := instance.(Unloader)
		if !ok {
			continue
		}
		if err := unloader.Unload(ctx); err != nil {
			m.log.Error(err, fmt.Sprintf("teardown failed for plugin %s", name))
		}
	}
}
