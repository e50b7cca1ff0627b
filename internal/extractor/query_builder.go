package extractor

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/connector"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/serializer"
	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

const (
	// RowLimit caps the number of rows a single dump extracts
	RowLimit = 100000

	// GeneratorFunction is the SQL function producing placeholder text for
	// masked columns
	GeneratorFunction = "lorem_ipsum"

	// generatorWords is the number of words generated per masked value
	generatorWords = 3
)

// TableColumnsQuery lists a table's columns in their natural order
const TableColumnsQuery = `SELECT column_name FROM information_schema.columns
WHERE table_schema = $1
AND table_name = $2
ORDER BY ordinal_position`

// QueryBuilder turns table configurations into bounded extraction queries
type QueryBuilder struct {
	DB              connector.Executor
	GeneratorSchema string
	Logger          *logrus.Logger
}

// NewQueryBuilder creates a new query builder. Masked columns are replaced by
// calls to generatorSchema.lorem_ipsum.
func NewQueryBuilder(db connector.Executor, generatorSchema string, logger *logrus.Logger) *QueryBuilder {
	return &QueryBuilder{
		DB:              db,
		GeneratorSchema: generatorSchema,
		Logger:          logger,
	}
}

// TableColumns returns the table's column names as reported by the catalog,
// ordered by ordinal position
func (qb *QueryBuilder) TableColumns(tc models.TableConfiguration) ([]string, error) {
	rows, err := qb.DB.ExecuteQuery(TableColumnsQuery, tc.SchemaName, tc.TableName)
	if err != nil {
		qb.Logger.Errorf("Error getting columns for %s: %v", tc.QualifiedTableName(), err)
		return nil, err
	}

	columns := make([]string, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, fmt.Sprintf("%v", row["column_name"]))
	}
	qb.Logger.Debugf("Columns for %s: %s", tc.QualifiedTableName(), strings.Join(columns, ", "))
	return columns, nil
}

// ExtractionSQL fetches the table's columns and builds the extraction query
func (qb *QueryBuilder) ExtractionSQL(tc models.TableConfiguration) (string, error) {
	columns, err := qb.TableColumns(tc)
	if err != nil {
		return "", err
	}
	return BuildExtractionSQL(tc, columns, qb.GeneratorSchema), nil
}

// BuildExtractionSQL renders the SELECT for a table: unmasked columns first in
// catalog order, then one generator call per masked column aliased to the
// column's name. Configuration values are trusted and interpolated as is.
func BuildExtractionSQL(tc models.TableConfiguration, columns []string, generatorSchema string) string {
	kept := lo.Without(columns, tc.ObfuscateColumns...)
	masked := lo.Map(tc.ObfuscateColumns, func(column string, _ int) string {
		return fmt.Sprintf("%s.%s(%d) AS %s", generatorSchema, GeneratorFunction, generatorWords, serializer.QuoteIdentifier(column))
	})
	selected := append(serializer.QuoteIdentifiers(kept), masked...)

	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s LIMIT %d",
		strings.Join(selected, ", "),
		tc.QualifiedTableName(),
		tc.DumpWhere,
		RowLimit,
	)
}
