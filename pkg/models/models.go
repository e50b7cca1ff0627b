package models

// TableConfiguration describes one table to sample: where it lives, which rows
// to dump and which columns to mask
type TableConfiguration struct {
	SchemaName       string   `mapstructure:"schema_name"`
	TableName        string   `mapstructure:"table_name"`
	DumpWhere        string   `mapstructure:"dump_where"`
	ObfuscateColumns []string `mapstructure:"obfuscate_columns"`
}

// QualifiedTableName returns the schema.table form of the table name
func (tc TableConfiguration) QualifiedTableName() string {
	return tc.SchemaName + "." + tc.TableName
}

// Row is a single result row keyed by column name
type Row = map[string]interface{}

// ForeignKey represents a foreign key relationship between two configured tables
type ForeignKey struct {
	Table            string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	ConstraintName   string
}

// TableResult represents the outcome of one table in a batch run
type TableResult struct {
	Table   string
	Status  string
	Path    string
	Size    int64
	Message string
}

// Table statuses reported by batch runs
const (
	StatusOK      = "OK"
	StatusInvalid = "INVALID"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// BatchResult represents the result of a batch run over all configured tables
type BatchResult struct {
	Tables           []TableResult
	SuccessfulTables []string
	FailedTables     []string
}

// Success reports whether no table failed
func (br BatchResult) Success() bool {
	return len(br.FailedTables) == 0
}
