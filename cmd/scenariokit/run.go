package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scenariokit/internal/apiclient"
	"scenariokit/internal/clockwork"
	"scenariokit/internal/config"
	"scenariokit/internal/dispatch"
	"scenariokit/internal/events"
	"scenariokit/internal/logger"
	"scenariokit/internal/model"
	"scenariokit/internal/observer"
	"scenariokit/internal/plugin"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <definition.yaml>",
		Short: "Execute a scenario definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(logger.Options{Level: flags.logLevel, HumanReadable: !flags.plain})
			if err != nil {
				return err
			}
			return runScenario(cmd.Context(), log, args[0], cmd.OutOrStdout())
		},
	}
}

func runScenario(ctx context.Context, log *logger.Logger, path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	bus := events.NewBus(0, log)
	defer bus.Stop()

	dispatcher, err := dispatch.New(log)
	if err != nil {
		return err
	}
	defer dispatcher.Stop()

	// The bus's perpetual consumption loop starts exactly once here.
	dispatcher.Start(func(busCtx context.Context) (any, error) {
		return nil, bus.Process(busCtx)
	})

	bus.Subscribe("task.started", logEvent(log))
	bus.Subscribe("task.completed", logEvent(log))
	bus.Subscribe("task.failed", logEvent(log))
	bus.Subscribe("task.timeout", logEvent(log))
	bus.Subscribe("file.download_started", logEvent(log))
	bus.Subscribe("file.download_completed", logEvent(log))
	bus.Subscribe("file.processing_failed", logEvent(log))

	manager := plugin.NewManager(log)
	if err := registerBuiltins(manager); err != nil {
		return err
	}

	services := buildServices(cfg, bus, log)
	if err := manager.LoadPlugins(cfg.EnabledPlugins, cfg.PluginConfigs, services); err != nil {
		log.Error(err, "some plugins failed to load")
	}
	defer manager.UnloadPlugins(context.Background())

	scenario := model.NewScenarioContext(cfg.Scenario.TestID, cfg.Scenario.BusinessFlow, cfg.Scenario.TestName)

	failures := 0
	for i, inv := range cfg.Scenario.Invocations {
		inv := inv
		timeout := time.Duration(inv.TimeoutSeconds * float64(time.Second))

		value, err := dispatcher.RunWithTimeout(ctx, func(jobCtx context.Context) (any, error) {
			return manager.ExecutePlugin(jobCtx, inv.Plugin, scenario, inv.Params)
		}, timeout)
		if err != nil {
			failures++
			fmt.Fprintf(out, "[%d] %-18s error: %v\n", i+1, inv.Plugin, err)
			continue
		}

		result := value.(*model.PluginResult)
		if result.Status != model.StatusCompleted {
			failures++
			fmt.Fprintf(out, "[%d] %-18s %s: %s\n", i+1, inv.Plugin, result.Status, result.Error)
			continue
		}
		fmt.Fprintf(out, "[%d] %-18s %s\n", i+1, inv.Plugin, result.Status)
	}

	fmt.Fprintf(out, "scenario %s: %d/%d invocations succeeded\n",
		scenario.TestID, len(cfg.Scenario.Invocations)-failures, len(cfg.Scenario.Invocations))

	if failures > 0 {
		return fmt.Errorf("%d invocation(s) did not complete", failures)
	}
	return nil
}

func buildServices(cfg *config.File, bus *events.Bus, log *logger.Logger) *plugin.Services {
	services := &plugin.Services{
		EventBus:    bus,
		Clock:       clockwork.New(),
		BaseTempDir: cfg.BaseTempDir,
		Logger:      log,
	}
	if services.BaseTempDir == "" {
		services.BaseTempDir = os.TempDir()
	}
	if cfg.JobAPI != nil {
		services.Observer = observer.NewJobAPIObserver(*cfg.JobAPI)
	}
	if cfg.CreationAPI != nil {
		services.APIClient = apiclient.NewHTTPClient(*cfg.CreationAPI)
	}
	return services
}

func logEvent(log *logger.Logger) events.Callback {
	return func(evt events.Event) {
		log.WithFields(map[string]any{
			"event_type":     evt.Type,
			"source":         evt.Source,
			"correlation_id": evt.CorrelationID,
		}).Info("lifecycle event")
	}
}
