// Package lifecycle is the composition root: it builds the logger and the
// session manager from Settings and runs the startup and shutdown hooks.
package lifecycle

import (
	"context"
	stderrs "errors"
	"io"

	"github.com/Station-Manager/errors"
	"github.com/authforge/authcore/config"
	"github.com/authforge/authcore/database"
	"github.com/authforge/authcore/logging"
	"github.com/authforge/authcore/telemetry"
)

// App owns the process-wide collaborators. Nothing here is global: callers
// pass App.Logger and App.DB to whatever needs them.
type App struct {
	Settings *config.Settings
	Logger   *logging.Service
	DB       *database.Manager
	// Migrations run at Startup, which also proves the database is reachable.
	Migrations []database.Migration

	shutdownTelemetry telemetry.ShutdownFunc
}

// New initializes the logger and prepares, without connecting, the session
// manager. console receives the console sink; nil means stdout.
func New(s *config.Settings, console io.Writer) (*App, error) {
	const op errors.Op = "lifecycle.New"
	if s == nil {
		return nil, errors.New(op).Msg("Settings are nil.")
	}

	logger := &logging.Service{
		Config:  &s.Logging,
		Console: console,
		App: logging.AppInfo{
			Name:        s.App.Name,
			Version:     s.App.Version,
			Environment: s.App.Environment,
		},
	}
	if err := logger.Initialize(); err != nil {
		return nil, errors.New(op).Err(err).Msg("Failed to initialize logging.")
	}
	s.Warnings = append(s.Warnings, logger.Warnings()...)

	return &App{
		Settings: s,
		Logger:   logger,
		DB:       database.NewManager(database.OptionsFromSettings(s, logger)),
	}, nil
}

// Startup reports configuration warnings, sets up tracing and brings the
// database up. A database that cannot be reached fails startup.
func (a *App) Startup(ctx context.Context) error {
	a.Logger.InfoWith().
		Str("environment", a.Settings.App.Environment).
		Str("address", a.Settings.ServerAddr()).
		Msg("Application is starting up")

	for _, w := range a.Settings.Warnings {
		a.Logger.WarnWith().Str("setting", w).Msg("Configuration value ignored")
	}

	shutdown, err := telemetry.Setup(ctx, a.Settings)
	if err != nil {
		// Tracing is optional; carry on without it.
		a.Logger.WarnWith().Err(err).Msg("Tracing disabled")
	}
	a.shutdownTelemetry = shutdown

	if len(a.Migrations) > 0 {
		return a.DB.Migrate(ctx, a.Migrations)
	}
	return a.DB.WithSession(ctx, func(*database.Session) error { return nil })
}

// Shutdown releases everything Startup acquired. Outside production it
// also removes transient build artifacts under the project root. The
// logger is closed last so every other step can still report.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfoWith().Msg("Application is shutting down")

	var errs []error
	if !a.Settings.IsProduction() {
		if _, err := CleanupArtifacts(a.Settings.App.ProjectRoot, a.Logger); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, err := range errs {
		a.Logger.ErrorWith().Err(err).Msg("Shutdown step failed")
	}
	if err := a.Logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return stderrs.Join(errs...)
}
