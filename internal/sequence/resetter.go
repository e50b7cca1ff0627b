package sequence

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/connector"
	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

// Resetter resynchronizes a table's id sequence with the data in the table
type Resetter struct {
	DB     connector.Executor
	Logger *logrus.Logger
}

// NewResetter creates a new sequence resetter
func NewResetter(db connector.Executor, logger *logrus.Logger) *Resetter {
	return &Resetter{
		DB:     db,
		Logger: logger,
	}
}

// SequenceNameSQL looks up the sequence backing the id column of the table
// passed as $1
const SequenceNameSQL = "SELECT PG_GET_SERIAL_SEQUENCE($1, 'id') AS name"

// SetValSQL moves the sequence passed as $1 to the table's highest id, or 1
// when the table is empty
func SetValSQL(tc models.TableConfiguration) string {
	return fmt.Sprintf("SELECT setval($1, coalesce((SELECT MAX(id) FROM %s),1))", tc.QualifiedTableName())
}

// Reset sets the table's id sequence to max(id). A table without an id
// column or without a sequence behind it is left alone.
func (r *Resetter) Reset(tc models.TableConfiguration) error {
	rows, err := r.DB.ExecuteQuery(SequenceNameSQL, tc.QualifiedTableName())
	if err != nil {
		if connector.IsStatementError(err) {
			// no id column, or no such table
			r.Logger.Debugf("No id sequence for %s: %v", tc.QualifiedTableName(), err)
			return nil
		}
		return err
	}

	var sequenceName string
	if len(rows) > 0 && rows[0]["name"] != nil {
		sequenceName = cast.ToString(rows[0]["name"])
	}
	if sequenceName == "" {
		r.Logger.Debugf("Table %s has no id sequence", tc.QualifiedTableName())
		return nil
	}

	if _, err := r.DB.ExecuteQuery(SetValSQL(tc), sequenceName); err != nil {
		r.Logger.Errorf("Error resetting sequence %s: %v", sequenceName, err)
		return err
	}
	r.Logger.Infof("Reset sequence %s for %s", sequenceName, tc.QualifiedTableName())
	return nil
}
