// Package cmd provides the command line interface for pubsub-ops
package cmd

import (
	"database/sql"

	"github.com/iotlab/pubsub-ops/internal/config"
	"github.com/iotlab/pubsub-ops/internal/db"
	"github.com/iotlab/pubsub-ops/internal/execx"
	"github.com/iotlab/pubsub-ops/internal/git"
	"github.com/iotlab/pubsub-ops/internal/log"
	"github.com/iotlab/pubsub-ops/internal/release"
	"github.com/iotlab/pubsub-ops/internal/update"
)

type contextKey string

// appContextKey is the command context key holding the App container.
const appContextKey contextKey = "app"

// App holds the application dependencies for the command line interface.
type App struct {
	Logger         log.Logger
	Config         *config.Settings
	ConfigProvider config.Provider
	Runner         execx.Runner
}

// NewApp creates a new App with all dependencies initialized.
func NewApp(logger log.Logger, configProv config.Provider) *App {
	return &App{
		Logger:         logger,
		Config:         configProv.GetConfig(),
		ConfigProvider: configProv,
		Runner:         execx.NewRealRunner(),
	}
}

// OpenRepository opens the managed working tree.
func (a *App) OpenRepository() (*git.Repository, error) {
	return git.Open(a.Config.RepositoryDir, a.Runner, a.Logger)
}

// NewCoordinator wires an update coordinator for the given tree handle.
func (a *App) NewCoordinator(repo *git.Repository, recorder update.Recorder) *update.Coordinator {
	resolver := release.NewResolver(repo, a.Config.ProbeTimeout, a.Logger)
	catalog := release.NewCatalog(repo, a.Config.FetchTimeout, a.Logger)
	return update.NewCoordinator(repo, resolver, catalog, a.Runner, a.Config, a.Logger, recorder)
}

// OpenHistory migrates and opens the update history store. Callers own the
// returned connection.
func (a *App) OpenHistory() (*sql.DB, *db.HistoryStore, error) {
	if err := db.Up(a.Config.DBPath, a.Logger); err != nil {
		return nil, nil, err
	}
	conn, err := db.Connect(a.Config.DBPath, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	return conn, db.NewHistoryStore(conn), nil
}
