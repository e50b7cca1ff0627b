package connector

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

// Executor runs SQL against the database. Rows come back as name-keyed maps in
// resultset order.
type Executor interface {
	ExecuteQuery(query string, params ...interface{}) ([]map[string]interface{}, error)
	ExecuteStatement(query string, params ...interface{}) (int64, error)
}

var _ Executor = (*DatabaseConnector)(nil)

// DatabaseConnector runs SQL on a PostgreSQL database through database/sql
// and the pgx driver
type DatabaseConnector struct {
	Host     string
	User     string
	Password string
	Database string
	Port     string
	SSLMode  string
	DB       *sql.DB
	Logger   *logrus.Logger
}

// NewDatabaseConnector creates a new database connector. Empty parameters fall
// back to the libpq environment variables.
func NewDatabaseConnector(host, user, password, database, port string, logger *logrus.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Host:     orEnv(host, "PGHOST", "localhost"),
		User:     orEnv(user, "PGUSER", "postgres"),
		Password: orEnv(password, "PGPASSWORD", ""),
		Database: orEnv(database, "PGDATABASE", ""),
		Port:     orEnv(port, "PGPORT", "5432"),
		SSLMode:  orEnv("", "PGSSLMODE", "disable"),
		Logger:   logger,
	}
}

// DSN returns the connection URL, credentials escaped
func (dc *DatabaseConnector) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(dc.User, dc.Password),
		Host:   dc.Host + ":" + dc.Port,
		Path:   "/" + dc.Database,
	}
	if dc.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {dc.SSLMode}}.Encode()
	}
	return u.String()
}

// Connect opens the database and pings it
func (dc *DatabaseConnector) Connect() error {
	if dc.Database == "" {
		return fmt.Errorf("database name must be provided either as an argument or as PGDATABASE environment variable")
	}

	cfg, err := pgx.ParseConfig(dc.DSN())
	if err != nil {
		return fmt.Errorf("invalid connection parameters: %w", err)
	}

	db := stdlib.OpenDB(*cfg)
	if err := db.Ping(); err != nil {
		db.Close()
		dc.Logger.Errorf("Error connecting to %s on %s:%s: %v", dc.Database, dc.Host, dc.Port, err)
		return &QueryError{Class: ClassConnectivity, Err: err}
	}

	dc.DB = db
	dc.Logger.Infof("Connected to PostgreSQL database: %s", dc.Database)
	return nil
}

// Disconnect closes the database connection
func (dc *DatabaseConnector) Disconnect() {
	if dc.DB == nil {
		return
	}
	if err := dc.DB.Close(); err != nil {
		dc.Logger.Errorf("Error closing database connection: %v", err)
		return
	}
	dc.DB = nil
	dc.Logger.Info("PostgreSQL connection closed")
}

func (dc *DatabaseConnector) ensureConnected() error {
	if dc.DB != nil {
		return nil
	}
	return dc.Connect()
}

// ExecuteQuery runs a query and returns every row it produced
func (dc *DatabaseConnector) ExecuteQuery(query string, params ...interface{}) ([]map[string]interface{}, error) {
	if err := dc.ensureConnected(); err != nil {
		return nil, err
	}

	dc.Logger.Debugf("Executing query: %s", query)
	rows, err := dc.DB.Query(query, params...)
	if err != nil {
		dc.Logger.Errorf("Error executing query: %v", err)
		return nil, newQueryError(query, err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		dc.Logger.Errorf("Error reading rows: %v", err)
		return nil, newQueryError(query, err)
	}
	return results, nil
}

// ExecuteStatement runs a statement and returns the number of affected rows.
// Without params pgx sends it over the simple protocol, so it may hold several
// ;-separated commands.
func (dc *DatabaseConnector) ExecuteStatement(query string, params ...interface{}) (int64, error) {
	if err := dc.ensureConnected(); err != nil {
		return 0, err
	}

	result, err := dc.DB.Exec(query, params...)
	if err != nil {
		dc.Logger.Errorf("Error executing statement: %v", err)
		return 0, newQueryError(query, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, newQueryError(query, err)
	}
	return affected, nil
}

// scanRows reads rows into name-keyed maps. bytea comes back in PostgreSQL's
// hex text form (\x...); any other value the driver hands back as bytes
// (json, jsonb, xml) becomes a string.
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	bytea := make([]bool, len(columns))
	for i, ct := range types {
		bytea[i] = strings.EqualFold(ct.DatabaseTypeName(), "BYTEA")
	}

	var results []map[string]interface{}
	values := make([]interface{}, len(columns))
	targets := make([]interface{}, len(columns))
	for rows.Next() {
		for i := range values {
			values[i] = nil
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			b, ok := values[i].([]byte)
			switch {
			case !ok:
				row[col] = values[i]
			case bytea[i]:
				row[col] = ByteaText(b)
			default:
				row[col] = string(b)
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// ByteaText renders b the way PostgreSQL prints bytea: \x followed by hex
func ByteaText(b []byte) string {
	return `\x` + hex.EncodeToString(b)
}

// orEnv returns value, or the environment variable key when value is empty,
// or fallback when both are
func orEnv(value, key, fallback string) string {
	if value != "" {
		return value
	}
	if env, ok := os.LookupEnv(key); ok {
		return env
	}
	return fallback
}
