package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
	"github.com/ternarybob/viso/internal/handlers"
	"github.com/ternarybob/viso/internal/interfaces"
	"github.com/ternarybob/viso/internal/services/automation"
	"github.com/ternarybob/viso/internal/services/dispatcher"
	"github.com/ternarybob/viso/internal/services/events"
	"github.com/ternarybob/viso/internal/services/executor"
	"github.com/ternarybob/viso/internal/services/maintenance"
	"github.com/ternarybob/viso/internal/services/secrets"
	"github.com/ternarybob/viso/internal/services/session"
	"github.com/ternarybob/viso/internal/services/status"
	"github.com/ternarybob/viso/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService interfaces.EventService

	// Job execution pipeline
	SecretResolver interfaces.SecretResolver
	SessionManager interfaces.SessionManager
	Driver         interfaces.AutomationDriver
	Executor       interfaces.JobExecutor
	Dispatcher     interfaces.JobDispatcher

	// Status query
	StatusQuery interfaces.StatusQuery

	// Scheduled storage upkeep
	MaintenanceService *maintenance.Service

	// HTTP handlers
	APIHandler  *handlers.APIHandler
	JobHandler  *handlers.JobHandler
	WSHandler   *handlers.WebSocketHandler
	LogsHandler *handlers.LogsHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info().Msg("Application initialized")

	return app, nil
}

// initStorage opens the Badger store and seeds provider credentials from the
// configured env file.
func (a *App) initStorage() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	if a.Config.Secrets.EnvFile != "" {
		if err := manager.LoadEnvFile(context.Background(), a.Config.Secrets.EnvFile); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to seed secrets from env file")
		}
	}

	return nil
}

// initServices builds the execution pipeline bottom-up: secrets, sessions,
// automation driver, executor, then the dispatcher that feeds it.
func (a *App) initServices() error {
	a.EventService = events.NewService(a.Logger)

	a.SecretResolver = secrets.NewResolver(a.StorageManager.KeyValueStorage(), a.Logger)
	a.SessionManager = session.NewManager(&a.Config.Provider, a.SecretResolver, a.Logger)
	a.Driver = automation.NewDriver(a.Logger)

	a.Executor = executor.NewService(
		a.StorageManager.JobStorage(),
		a.SessionManager,
		a.Driver,
		a.EventService,
		&a.Config.Automation,
		a.Logger,
	)

	a.Dispatcher = dispatcher.NewService(a.Executor, &a.Config.Dispatcher, a.Logger)

	a.StatusQuery = status.NewService(a.StorageManager.JobStorage(), a.Logger)

	a.MaintenanceService = maintenance.NewService(a.StorageManager, &a.Config.Maintenance, a.Logger)
	if err := a.MaintenanceService.Start(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to start maintenance service")
	}

	return nil
}

// initHandlers wires the HTTP surface onto the services.
func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler(a.Config, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.Dispatcher, a.StatusQuery, a.EventService, a.Config, a.Logger)
	a.LogsHandler = handlers.NewLogsHandler(&a.Config.WebSocket, a.Logger)

	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
	if err := a.WSHandler.SubscribeToJobEvents(); err != nil {
		return fmt.Errorf("failed to subscribe websocket handler: %w", err)
	}

	return nil
}

// Close shuts the application down in dependency order: stop accepting work,
// drain in-flight jobs, then release the stores. Terminal writes happen
// inside the drain, so storage must close last.
func (a *App) Close() error {
	drainTimeout := a.Config.Dispatcher.DrainTimeoutOr(30 * time.Second)
	if a.Dispatcher != nil {
		if err := a.Dispatcher.Stop(drainTimeout); err != nil {
			a.Logger.Warn().Err(err).Msg("Dispatcher drain incomplete")
		} else {
			a.Logger.Info().Msg("Dispatcher drained")
		}
	}

	if a.MaintenanceService != nil {
		a.MaintenanceService.Stop()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
