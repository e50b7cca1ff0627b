package runner

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/config"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/connector"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/dumpfile"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/gateway"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/planner"
	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

// Runner drives a gateway over every configured table
type Runner struct {
	Gateway      gateway.DataStoreGateway
	Settings     *config.Settings
	FailedTables map[string]bool
	Logger       *logrus.Logger

	// OnTable is called once per processed table, when set
	OnTable func(models.TableResult)
}

// NewRunner creates a new runner
func NewRunner(gw gateway.DataStoreGateway, settings *config.Settings, logger *logrus.Logger) *Runner {
	return &Runner{
		Gateway:      gw,
		Settings:     settings,
		FailedTables: make(map[string]bool),
		Logger:       logger,
	}
}

// ValidateAll checks every table configuration. A failed check is recorded;
// only transport errors abort the run.
func (r *Runner) ValidateAll(tables []models.TableConfiguration) (models.BatchResult, error) {
	var batch models.BatchResult
	for _, tc := range tables {
		result, err := r.Gateway.Valid(tc)
		if err != nil {
			return batch, err
		}
		if result.IsFailure() {
			r.record(&batch, models.TableResult{Table: tc.QualifiedTableName(), Status: models.StatusInvalid, Message: result.Reason()})
			continue
		}
		r.record(&batch, models.TableResult{Table: tc.QualifiedTableName(), Status: models.StatusOK})
	}
	return batch, nil
}

// DumpAll validates, dumps and compresses every table. Invalid tables are
// skipped.
func (r *Runner) DumpAll(tables []models.TableConfiguration) (models.BatchResult, error) {
	var batch models.BatchResult
	for _, tc := range tables {
		name := tc.QualifiedTableName()

		result, err := r.Gateway.Valid(tc)
		if err != nil {
			return batch, err
		}
		if result.IsFailure() {
			r.Logger.Warningf("Skipping %s: %s", name, result.Reason())
			r.record(&batch, models.TableResult{Table: name, Status: models.StatusInvalid, Message: result.Reason()})
			continue
		}

		if _, err := r.Gateway.DumpToLocalFile(tc); err != nil {
			if !connector.IsStatementError(err) {
				return batch, err
			}
			r.record(&batch, models.TableResult{Table: name, Status: models.StatusFailed, Message: err.Error()})
			continue
		}

		compressed, err := r.dumpFile(tc).Compress()
		if err != nil {
			r.Logger.Errorf("Error compressing dump of %s: %v", name, err)
			r.record(&batch, models.TableResult{Table: name, Status: models.StatusFailed, Message: err.Error()})
			continue
		}
		r.record(&batch, models.TableResult{Table: name, Status: models.StatusOK, Path: compressed, Size: fileSize(compressed)})
	}
	return batch, nil
}

// LoadAll wipes every table of the plan, referencing tables first, then
// loads them in plan order and resets their sequences. Nothing runs in
// production.
func (r *Runner) LoadAll(plan *planner.Plan) (models.BatchResult, error) {
	var batch models.BatchResult
	if r.Settings.IsProduction() {
		return batch, gateway.ErrLoadInProduction
	}

	for _, tc := range plan.LoadOrder {
		df := r.dumpFile(tc)
		if _, err := os.Stat(df.LocalCompressedDumpFilePath()); err != nil {
			continue
		}
		if _, err := df.Decompress(); err != nil {
			r.Logger.Errorf("Error decompressing dump of %s: %v", tc.QualifiedTableName(), err)
			r.FailedTables[tc.QualifiedTableName()] = true
		}
	}

	for _, tc := range plan.WipeOrder {
		if r.FailedTables[tc.QualifiedTableName()] {
			continue
		}
		if err := r.Gateway.WipeTable(tc); err != nil {
			if !connector.IsStatementError(err) {
				return batch, err
			}
			r.FailedTables[tc.QualifiedTableName()] = true
		}
	}

	for _, tc := range plan.LoadOrder {
		name := tc.QualifiedTableName()
		if r.FailedTables[name] {
			r.record(&batch, models.TableResult{Table: name, Status: models.StatusSkipped, Message: "wipe or decompression failed"})
			continue
		}

		err := r.Gateway.LoadDumpFile(tc)
		var missing *gateway.MissingDumpFileError
		switch {
		case err == nil:
		case errors.As(err, &missing):
			r.record(&batch, models.TableResult{Table: name, Status: models.StatusSkipped, Message: err.Error()})
			continue
		case connector.IsStatementError(err):
			r.record(&batch, models.TableResult{Table: name, Status: models.StatusFailed, Message: err.Error()})
			continue
		default:
			return batch, err
		}

		if err := r.Gateway.ResetSequence(tc); err != nil {
			return batch, err
		}
		path := r.dumpFile(tc).LocalDumpFilePath()
		r.record(&batch, models.TableResult{Table: name, Status: models.StatusOK, Path: path, Size: fileSize(path)})
	}
	return batch, nil
}

// WipeAll deletes the rows of every table of the plan, referencing tables
// first
func (r *Runner) WipeAll(plan *planner.Plan) (models.BatchResult, error) {
	var batch models.BatchResult
	for _, tc := range plan.WipeOrder {
		if err := r.Gateway.WipeTable(tc); err != nil {
			if !connector.IsStatementError(err) {
				return batch, err
			}
			r.record(&batch, models.TableResult{Table: tc.QualifiedTableName(), Status: models.StatusFailed, Message: err.Error()})
			continue
		}
		r.record(&batch, models.TableResult{Table: tc.QualifiedTableName(), Status: models.StatusOK})
	}
	return batch, nil
}

// ResetSequences resets the id sequence of every table
func (r *Runner) ResetSequences(tables []models.TableConfiguration) (models.BatchResult, error) {
	var batch models.BatchResult
	for _, tc := range tables {
		if err := r.Gateway.ResetSequence(tc); err != nil {
			return batch, err
		}
		r.record(&batch, models.TableResult{Table: tc.QualifiedTableName(), Status: models.StatusOK})
	}
	return batch, nil
}

func (r *Runner) record(batch *models.BatchResult, result models.TableResult) {
	batch.Tables = append(batch.Tables, result)
	if result.Status == models.StatusOK {
		batch.SuccessfulTables = append(batch.SuccessfulTables, result.Table)
	} else {
		batch.FailedTables = append(batch.FailedTables, result.Table)
		r.FailedTables[result.Table] = true
	}

	if r.OnTable != nil {
		r.OnTable(result)
	}
}

func (r *Runner) dumpFile(tc models.TableConfiguration) dumpfile.DumpFile {
	return dumpfile.New(tc, r.Settings.CompactedDumpDirectory)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
