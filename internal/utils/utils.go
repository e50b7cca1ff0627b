package utils

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/connector"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/planner"
	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

// SetupLogging configures the logging system
func SetupLogging(logLevel string) *logrus.Logger {
	// Create a new logger
	logger := logrus.New()

	// Get log level from environment variable or parameter
	levelStr := logLevel
	if levelStr == "" {
		levelStr = os.Getenv("SAMPLE_DATA_DUMP_LOG_LEVEL")
		if levelStr == "" {
			levelStr = "info"
		}
	}

	// Parse log level
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	// Configure logger
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)

	logger.Debugf("Logging configured with level: %s", level)
	return logger
}

// connectionVariables are the libpq variables a connection cannot do without
var connectionVariables = []string{"PGHOST", "PGUSER", "PGDATABASE"}

// LoadEnvironmentVariables loads envFile when it exists and reports whether
// the PostgreSQL connection variables are all set afterwards. Variables
// already in the environment win over the file.
func LoadEnvironmentVariables(envFile string, logger *logrus.Logger) bool {
	switch _, err := os.Stat(envFile); {
	case err == nil:
		if err := godotenv.Load(envFile); err != nil {
			logger.Warningf("Error loading %s: %v", envFile, err)
		} else {
			logger.Infof("Loaded environment variables from %s", envFile)
		}
	case os.IsNotExist(err):
		if _, err := os.Stat(envFile + ".sample"); err == nil {
			logger.Infof("No %s file found; %s.sample can be copied as a starting point", envFile, envFile)
		}
	default:
		logger.Warningf("Cannot read %s: %v", envFile, err)
	}

	missing := lo.Filter(connectionVariables, func(name string, _ int) bool {
		return os.Getenv(name) == ""
	})
	if len(missing) > 0 {
		logger.Debugf("Unset connection environment variables: %s", strings.Join(missing, ", "))
		return false
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		for _, name := range append(connectionVariables, "PGPORT", "PGSSLMODE") {
			logger.Debugf("%s=%s", name, os.Getenv(name))
		}
	}
	return true
}

// ValidateConnectionParams logs the first unusable connection parameter and
// reports whether all of them are usable. An empty password is allowed.
func ValidateConnectionParams(host, user, password, database, port string, logger *logrus.Logger) bool {
	required := []struct{ name, value string }{
		{"host", host},
		{"user", user},
		{"name", database},
	}
	for _, param := range required {
		if param.value == "" {
			logger.Errorf("Database %s is required", param.name)
			return false
		}
	}

	if password == "" {
		logger.Debug("Database password is empty")
	}

	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		logger.Errorf("Invalid port number: %s", port)
		return false
	}
	return true
}

// PrintSummary prints one row per processed table followed by totals
func PrintSummary(w io.Writer, title string, batch models.BatchResult) {
	headerfmt := color.New(color.FgGreen, color.Underline).SprintFunc()

	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow(headerfmt("TABLE"), headerfmt("STATUS"), headerfmt("SIZE"), headerfmt("DETAILS"))
	for _, result := range batch.Tables {
		size := ""
		if result.Size > 0 {
			size = humanize.Bytes(uint64(result.Size))
		}
		table.AddRow(result.Table, statusColor(result.Status), size, result.Message)
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 50))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	if len(batch.Tables) > 0 {
		fmt.Fprintln(w, table)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total tables processed: %d\n", len(batch.Tables))
	fmt.Fprintf(w, "Successful tables: %d\n", len(batch.SuccessfulTables))
	fmt.Fprintf(w, "Failed tables: %d\n", len(batch.FailedTables))
	fmt.Fprintln(w, strings.Repeat("=", 50))
}

func statusColor(status string) string {
	switch status {
	case models.StatusOK:
		return color.GreenString(status)
	case models.StatusInvalid:
		return color.YellowString(status)
	case models.StatusFailed:
		return color.RedString(status)
	default:
		return color.New(color.Faint).Sprint(status)
	}
}

// PrintPlan prints the load order of the configured tables
func PrintPlan(w io.Writer, plan *planner.Plan) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
	fmt.Fprintln(w, "TABLE LOAD PLAN")
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "\n1. BASIC STATISTICS")
	fmt.Fprintf(w, "   Configured tables: %d\n", len(plan.LoadOrder))
	fmt.Fprintf(w, "   Foreign keys between configured tables: %d\n", len(plan.ForeignKeys))
	fmt.Fprintf(w, "   Circular groups: %d\n", len(plan.Cycles))

	if len(plan.Cycles) > 0 {
		fmt.Fprintln(w, "\n2. CIRCULAR DEPENDENCIES")
		for _, cycle := range plan.Cycles {
			fmt.Fprintf(w, "   %s\n", strings.Join(cycle, " <-> "))
		}
	}

	fmt.Fprintln(w, "\n3. LOAD ORDER (wipe runs in reverse)")
	for _, line := range plan.Describe() {
		fmt.Fprintf(w, "   %s\n", line)
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
}

// VerifyLoadedTables counts the rows of every table after a load. Tables that
// could not be counted or are empty are returned separately.
func VerifyLoadedTables(db connector.Executor, tables []models.TableConfiguration, logger *logrus.Logger) (map[string]int64, []string) {
	logger.Info("Verifying loaded tables...")

	counts := make(map[string]int64)
	emptyTables := []string{}

	for _, tc := range tables {
		table := tc.QualifiedTableName()
		query := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", table)
		result, err := db.ExecuteQuery(query)
		if err != nil {
			logger.Warningf("Could not verify record count for table: %s", table)
			emptyTables = append(emptyTables, table)
			continue
		}

		if len(result) == 0 {
			logger.Warningf("No result returned for count query on table: %s", table)
			emptyTables = append(emptyTables, table)
			continue
		}

		count, err := cast.ToInt64E(result[0]["count"])
		if err != nil {
			logger.Warningf("Could not parse count for table %s: %v", table, err)
			emptyTables = append(emptyTables, table)
			continue
		}

		counts[table] = count
		if count == 0 {
			logger.Warningf("Table %s has no records", table)
			emptyTables = append(emptyTables, table)
		}
	}

	return counts, emptyTables
}

// PrintVerificationResults prints the row counts found after a load
func PrintVerificationResults(w io.Writer, counts map[string]int64, emptyTables []string) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 50))
	fmt.Fprintln(w, "LOADED TABLE VERIFICATION")
	fmt.Fprintln(w, strings.Repeat("=", 50))

	names := lo.Keys(counts)
	sort.Strings(names)

	table := uitable.New()
	for _, name := range names {
		table.AddRow(name, humanize.Comma(counts[name]))
	}
	if len(counts) > 0 {
		fmt.Fprintln(w, table)
	}

	if len(emptyTables) > 0 {
		fmt.Fprintf(w, "\n%d tables have no records:\n", len(emptyTables))
		for _, name := range emptyTables {
			fmt.Fprintf(w, "  - %s\n", name)
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 50))
}
