package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lcalzada-xor/centerville/internal/adapters/shortrange/sim"
	"github.com/lcalzada-xor/centerville/internal/adapters/storage"
	webserver "github.com/lcalzada-xor/centerville/internal/adapters/web/server"
	"github.com/lcalzada-xor/centerville/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/centerville/internal/config"
	"github.com/lcalzada-xor/centerville/internal/core/ports"
	"github.com/lcalzada-xor/centerville/internal/core/services/coordinator"
	"github.com/lcalzada-xor/centerville/internal/telemetry"
)

// Application holds the core components of the coordinator.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config      *config.Config
	Storage     ports.Storage
	Hub         *websocket.Hub
	Coordinator *coordinator.Coordinator
	WebServer   *webserver.Server
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	telemetry.InitMetrics()

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.Storage = store

	transport, err := app.initTransport()
	if err != nil {
		return err
	}

	app.Hub = websocket.NewHub()
	app.Coordinator = coordinator.New(app.Storage, app.Hub, transport, app.Config.ScanInterval, app.Config.PollInterval)
	app.WebServer = webserver.NewServer(app.Config.Addr, app.Coordinator, app.Hub, app.Storage)

	if app.Config.MockMode {
		slog.Info("Mock Mode Active: simulated short-range sensors")
	}

	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	return store, nil
}

// initTransport selects the short-range radio. Only the simulated transport
// is compiled in; real radio support plugs in behind ports.Transport.
func (app *Application) initTransport() (ports.Transport, error) {
	if app.Config.MockMode {
		return sim.NewTransport(), nil
	}
	return nil, fmt.Errorf("no short-range radio driver available, run with -mock")
}

// Run starts the application components and blocks until shutdown.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting coordinator components")

	if err := app.Coordinator.Start(ctx); err != nil {
		return fmt.Errorf("coordinator start failed: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	slog.Info("Coordinator ready")

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Termination signal received")
	case err := <-errChan:
		runErr = err
	}

	if err := app.cleanup(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (app *Application) cleanup() error {
	slog.Info("Cleaning up resources")

	app.Coordinator.Stop()

	if err := app.Storage.Close(); err != nil {
		return fmt.Errorf("closing storage: %w", err)
	}
	return nil
}
