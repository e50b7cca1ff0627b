package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/config"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/connector"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/dumpfile"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/extractor"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/sequence"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/serializer"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/validator"
	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

// ErrLoadInProduction is returned when a dump is about to be loaded into a
// production database. It is not recoverable: callers must stop rather than
// retry or move on to other tables.
var ErrLoadInProduction = errors.New("refusing to load obfuscated dumps in production")

// MissingDumpFileError is returned when there is no script to load
type MissingDumpFileError struct {
	Path string
}

func (e *MissingDumpFileError) Error() string {
	return fmt.Sprintf("file %s does not exist for loading", e.Path)
}

// DataStoreGateway dumps, loads and maintains sampled tables. LoadDumpFile
// returns ErrLoadInProduction before touching any file or table in a
// production environment; callers must abort on it.
type DataStoreGateway interface {
	DumpToLocalFile(tc models.TableConfiguration) (string, error)
	LoadDumpFile(tc models.TableConfiguration) error
	ResetSequence(tc models.TableConfiguration) error
	Valid(tc models.TableConfiguration) (validator.Result, error)
	WipeTable(tc models.TableConfiguration) error
}

var _ DataStoreGateway = (*Gateway)(nil)

// Gateway is the PostgreSQL DataStoreGateway
type Gateway struct {
	DB       connector.Executor
	Settings *config.Settings
	Logger   *logrus.Logger

	queries   *extractor.QueryBuilder
	validator *validator.TableConfigurationValidator
	sequences *sequence.Resetter
}

// NewGateway creates a gateway running SQL through db
func NewGateway(db connector.Executor, settings *config.Settings, logger *logrus.Logger) *Gateway {
	return &Gateway{
		DB:        db,
		Settings:  settings,
		Logger:    logger,
		queries:   extractor.NewQueryBuilder(db, settings.LoremIpsumFunctionSchema, logger),
		validator: validator.NewTableConfigurationValidator(db, logger),
		sequences: sequence.NewResetter(db, logger),
	}
}

// DumpFile returns the dump file locations of tc
func (g *Gateway) DumpFile(tc models.TableConfiguration) dumpfile.DumpFile {
	return dumpfile.New(tc, g.Settings.CompactedDumpDirectory)
}

// DumpToLocalFile extracts a sample of the table and writes it as a
// replayable script. It returns the script path.
func (g *Gateway) DumpToLocalFile(tc models.TableConfiguration) (string, error) {
	df := g.DumpFile(tc)
	path := df.LocalDumpFilePath()

	query, err := g.queries.ExtractionSQL(tc)
	if err != nil {
		return "", err
	}

	rows, err := g.DB.ExecuteQuery(query)
	if err != nil {
		g.Logger.Errorf("Error extracting rows from %s: %v", tc.QualifiedTableName(), err)
		return "", err
	}

	var columns []string
	if len(rows) > 0 {
		columns, err = g.queries.TableColumns(tc)
		if err != nil {
			return "", err
		}
	}

	f, err := df.Create()
	if err != nil {
		g.Logger.Errorf("Error creating dump file %s: %v", path, err)
		return "", err
	}
	if err := serializer.WriteScript(f, tc.QualifiedTableName(), columns, rows); err != nil {
		f.Close()
		g.Logger.Errorf("Error writing dump file %s: %v", path, err)
		return "", fmt.Errorf("error writing dump file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("error closing dump file: %w", err)
	}

	g.Logger.Infof("Dumped %d rows from %s to %s", len(rows), tc.QualifiedTableName(), path)
	return path, nil
}

// LoadDumpFile replays the table's script. Nothing is read or executed in
// production.
func (g *Gateway) LoadDumpFile(tc models.TableConfiguration) error {
	if g.Settings.IsProduction() {
		return ErrLoadInProduction
	}

	path := g.DumpFile(tc).LocalDumpFilePath()
	script, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &MissingDumpFileError{Path: path}
		}
		return fmt.Errorf("error reading dump file: %w", err)
	}

	if _, err := g.DB.ExecuteStatement(string(script)); err != nil {
		g.Logger.Errorf("Error loading %s: %v", path, err)
		return err
	}
	g.Logger.Infof("Loaded %s", path)
	return nil
}

// ResetSequence moves the table's id sequence past the loaded rows
func (g *Gateway) ResetSequence(tc models.TableConfiguration) error {
	return g.sequences.Reset(tc)
}

// Valid checks the configuration against the database
func (g *Gateway) Valid(tc models.TableConfiguration) (validator.Result, error) {
	return g.validator.Validate(tc)
}

// WipeTable deletes every row of the table
func (g *Gateway) WipeTable(tc models.TableConfiguration) error {
	if _, err := g.DB.ExecuteStatement(WipeSQL(tc)); err != nil {
		g.Logger.Errorf("Error wiping %s: %v", tc.QualifiedTableName(), err)
		return err
	}
	g.Logger.Infof("Wiped %s", tc.QualifiedTableName())
	return nil
}

// WipeSQL is the statement WipeTable runs
func WipeSQL(tc models.TableConfiguration) string {
	return fmt.Sprintf("DELETE FROM %s CASCADE", tc.QualifiedTableName())
}
