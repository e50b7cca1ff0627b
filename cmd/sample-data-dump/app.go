package main

import (
	"fmt"

	"github.com/gosuri/uiprogress"
	"github.com/sirupsen/logrus"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/config"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/connector"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/gateway"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/runner"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/utils"
	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

type options struct {
	configPath string
	envFile    string
	logLevel   string
	host       string
	user       string
	password   string
	database   string
	port       string
	tables     []string
}

// app holds what a command needs once settings are loaded
type app struct {
	logger   *logrus.Logger
	settings *config.Settings
	tables   []models.TableConfiguration
	db       *connector.DatabaseConnector
	gateway  *gateway.Gateway
}

// newApp sets up logging and loads settings
func newApp(opts *options) (*app, error) {
	logger := utils.SetupLogging(opts.logLevel)
	utils.LoadEnvironmentVariables(opts.envFile, logger)

	settings, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	tables, err := settings.SelectTables(opts.tables)
	if err != nil {
		return nil, err
	}

	return &app{logger: logger, settings: settings, tables: tables}, nil
}

// connect opens the database, flags taking precedence over settings
func (a *app) connect(opts *options) error {
	settings, logger := a.settings, a.logger
	db := connector.NewDatabaseConnector(
		firstNonEmpty(opts.host, settings.Database.Host),
		firstNonEmpty(opts.user, settings.Database.User),
		firstNonEmpty(opts.password, settings.Database.Password),
		firstNonEmpty(opts.database, settings.Database.Name),
		firstNonEmpty(opts.port, settings.Database.Port),
		logger,
	)
	if settings.Database.SSLMode != "" {
		db.SSLMode = settings.Database.SSLMode
	}

	if !utils.ValidateConnectionParams(db.Host, db.User, db.Password, db.Database, db.Port, logger) {
		return fmt.Errorf("invalid connection parameters")
	}
	if err := db.Connect(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	a.db = db
	a.gateway = gateway.NewGateway(db, settings, logger)
	return nil
}

func newConnectedApp(opts *options) (*app, error) {
	a, err := newApp(opts)
	if err != nil {
		return nil, err
	}
	if err := a.connect(opts); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Disconnect()
	}
}

// newRunner creates a runner reporting progress on a bar of total tables
func (a *app) newRunner(label string, total int) (*runner.Runner, func()) {
	r := runner.NewRunner(a.gateway, a.settings, a.logger)
	if total == 0 {
		return r, func() {}
	}

	uiprogress.Start()
	bar := uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return label + ": "
	})

	r.OnTable = func(models.TableResult) {
		bar.Incr()
	}
	return r, uiprogress.Stop
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func failedTablesError(batch models.BatchResult) error {
	if batch.Success() {
		return nil
	}
	return fmt.Errorf("%d of %d tables failed", len(batch.FailedTables), len(batch.Tables))
}
