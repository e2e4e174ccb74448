package plugin

import (
	"context"
	"time"

	"scenariokit/internal/apiclient"
	"scenariokit/internal/clockwork"
	"scenariokit/internal/events"
	"scenariokit/internal/logger"
	"scenariokit/internal/model"
	"scenariokit/internal/observer"
)

// Plugin is the capability unit the manager dispatches to. Implementations
// own no state beyond collaborators injected at construction time.
//
// Execute translates every expected failure mode into a PluginResult; only
// genuine defects are returned as errors. It may be called many times across
// scenarios.
type Plugin interface {
	// Name returns the stable identifier used for lookup and logging.
	Name() string

	// Capabilities returns the ordered capability tags this plugin serves,
	// e.g. "async_task.wait". Advisory, used for discovery and listing, not
	// enforced at call time.
	Capabilities() []string

	// Execute runs the plugin against the shared scenario context.
	Execute(ctx context.Context, scenario *model.ScenarioContext, params map[string]any) (*model.PluginResult, error)
}

// Unloader is the optional teardown hook. Teardown errors are logged and
// swallowed; unloading always succeeds from the caller's perspective.
type Unloader interface {
	Unload(ctx context.Context) error
}

// Factory constructs one plugin instance at load time. Each plugin package
// exposes one of these; the manager is its sole caller.
type Factory func(config map[string]any, services *Services) (Plugin, error)

// Services is the bundle of process-wide collaborators injected into every
// plugin factory. Fields a plugin does not need may be nil; each plugin
// reports missing required collaborators as failed results at call time.
type Services struct {
	EventBus    *events.Bus
	Observer    observer.TaskObserver
	Clock       clockwork.Clock
	APIClient   apiclient.Client
	BaseTempDir string
	Logger      *logger.Logger
}

// Descriptor is the read-only view of a loaded plugin.
type Descriptor struct {
	Name         string
	Capabilities []string
	LoadedAt     time.Time
}
