package validator

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/connector"
	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

const (
	schemaExistsQuery = `SELECT EXISTS (
  SELECT *
  FROM pg_catalog.pg_namespace
  WHERE nspname = $1
) AS exists`

	tableExistsQuery = `SELECT EXISTS (
  SELECT 1
  FROM information_schema.tables
  WHERE table_schema = $1
  AND table_name = $2
) AS exists`
)

// TableConfigurationValidator checks a table configuration against the database
type TableConfigurationValidator struct {
	DB     connector.Executor
	Logger *logrus.Logger
}

// NewTableConfigurationValidator creates a new validator
func NewTableConfigurationValidator(db connector.Executor, logger *logrus.Logger) *TableConfigurationValidator {
	return &TableConfigurationValidator{
		DB:     db,
		Logger: logger,
	}
}

// Validate checks that the schema and table exist, that dump_where is a valid
// predicate for the table and that every obfuscated column exists. It stops
// at the first failing check.
func (v *TableConfigurationValidator) Validate(tc models.TableConfiguration) (Result, error) {
	result, err := Sequence(
		func() (Result, error) { return v.schemaExistence(tc) },
		func() (Result, error) { return v.tableExistence(tc) },
		func() (Result, error) { return v.dumpWhereValidity(tc) },
		func() (Result, error) { return v.obfuscateColumnsValidity(tc) },
	)
	if err != nil {
		return Result{}, err
	}

	if result.IsFailure() {
		v.Logger.Warningf("Table configuration %s is invalid: %s", tc.QualifiedTableName(), result.Reason())
	} else {
		v.Logger.Debugf("Table configuration %s is valid", tc.QualifiedTableName())
	}
	return result, nil
}

func (v *TableConfigurationValidator) schemaExistence(tc models.TableConfiguration) (Result, error) {
	exists, err := v.exists(schemaExistsQuery, tc.SchemaName)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return Failure(fmt.Sprintf("schema %s does not exist", tc.SchemaName)), nil
	}
	return Success(), nil
}

func (v *TableConfigurationValidator) tableExistence(tc models.TableConfiguration) (Result, error) {
	exists, err := v.exists(tableExistsQuery, tc.SchemaName, tc.TableName)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return Failure(fmt.Sprintf("%s does not exist", tc.QualifiedTableName())), nil
	}
	return Success(), nil
}

func (v *TableConfigurationValidator) dumpWhereValidity(tc models.TableConfiguration) (Result, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT 1", tc.QualifiedTableName(), tc.DumpWhere)
	return v.statementValidity(query, fmt.Sprintf("dump_where for %s invalid", tc.QualifiedTableName()))
}

func (v *TableConfigurationValidator) obfuscateColumnsValidity(tc models.TableConfiguration) (Result, error) {
	if len(tc.ObfuscateColumns) == 0 {
		return Success(), nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s LIMIT 1", strings.Join(tc.ObfuscateColumns, ", "), tc.QualifiedTableName())
	return v.statementValidity(query, fmt.Sprintf("obfuscate_columns for %s invalid", tc.QualifiedTableName()))
}

// statementValidity runs query and turns a statement error into a failure
func (v *TableConfigurationValidator) statementValidity(query, reason string) (Result, error) {
	if _, err := v.DB.ExecuteQuery(query); err != nil {
		if connector.IsStatementError(err) {
			v.Logger.Debugf("%s: %v", reason, err)
			return Failure(reason), nil
		}
		return Result{}, err
	}
	return Success(), nil
}

func (v *TableConfigurationValidator) exists(query string, params ...interface{}) (bool, error) {
	rows, err := v.DB.ExecuteQuery(query, params...)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	return cast.ToBool(rows[0]["exists"]), nil
}
