package serializer

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// NoRowsStatement is written instead of DELETE/INSERT when nothing matched
const NoRowsStatement = "SELECT 'No rows to load'"

// reservedColumns maps column names to the key some drivers return them under.
// An unquoted user in a select list is the SQL current_user function.
var reservedColumns = map[string]string{
	"user": "current_user",
}

// QuoteIdentifier wraps a name in double quotes. Names are trusted and not
// escaped.
func QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

// QuoteIdentifiers quotes every name in order
func QuoteIdentifiers(names []string) []string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdentifier(name)
	}
	return quoted
}

// QuoteLiteral wraps s in single quotes, doubling embedded single quotes
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatLiteral renders a row value as a PostgreSQL literal: NULL for nil,
// quoted text for strings, dates and times, a quoted \x hex bytea literal for
// raw bytes, the bare textual form otherwise.
func FormatLiteral(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return QuoteLiteral(v)
	case []byte:
		return QuoteLiteral(`\x` + hex.EncodeToString(v))
	case time.Time:
		return QuoteLiteral(formatTime(v))
	case *time.Time:
		if v == nil {
			return "NULL"
		}
		return QuoteLiteral(formatTime(*v))
	case fmt.Stringer:
		return v.String()
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return s
}

// formatTime renders t in a form PostgreSQL accepts for date, timestamp and
// timestamptz columns alike
func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.999999Z07:00")
}

// lookup returns column's value in row. A reserved column is read under its
// alias when the row carries one, under its own name otherwise.
func lookup(row map[string]interface{}, column string) interface{} {
	if key, ok := reservedColumns[column]; ok {
		if value, ok := row[key]; ok {
			return value
		}
	}
	return row[column]
}

// FormatTuple renders one row as a parenthesized value list in column order
func FormatTuple(row map[string]interface{}, columns []string) string {
	values := make([]string, len(columns))
	for i, column := range columns {
		values[i] = FormatLiteral(lookup(row, column))
	}
	return "(" + strings.Join(values, ", ") + ")"
}

// WriteScript writes a replayable script for rows to w. With no rows the
// script is a single no-op statement; otherwise it deletes the table's
// contents and inserts every row, one tuple per line, using columns (the
// table's natural column list) for the INSERT.
func WriteScript(w io.Writer, table string, columns []string, rows []map[string]interface{}) error {
	bw := bufio.NewWriter(w)

	if len(rows) == 0 {
		if _, err := fmt.Fprintln(bw, NoRowsStatement); err != nil {
			return err
		}
		return bw.Flush()
	}

	if _, err := fmt.Fprintf(bw, "DELETE FROM %s;\n", table); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "INSERT INTO %s (%s)\n", table, strings.Join(QuoteIdentifiers(columns), ", ")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(bw, "VALUES"); err != nil {
		return err
	}

	last := len(rows) - 1
	for i, row := range rows {
		comma := ","
		if i == last {
			comma = ""
		}
		if _, err := fmt.Fprintln(bw, FormatTuple(row, columns)+comma); err != nil {
			return err
		}
	}

	return bw.Flush()
}
