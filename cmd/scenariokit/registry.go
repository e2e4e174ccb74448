package main

import (
	"scenariokit/internal/plugin"
	"scenariokit/internal/plugins/apimix"
	"scenariokit/internal/plugins/asynctask"
	"scenariokit/internal/plugins/fileproc"
)

// registerBuiltins populates the manager's factory registry. Plugin loading
// is registry-driven; there is no dynamic import.
func registerBuiltins(manager *plugin.Manager) error {
	factories := map[string]plugin.Factory{
		"async_task":      asynctask.New,
		"file_processing": fileproc.New,
		"api_mixing":      apimix.New,
	}

	for name, factory := range factories {
		if err := manager.RegisterFactory(name, factory); err != nil {
			return err
		}
	}
	return nil
}
