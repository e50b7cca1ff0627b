package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "sample-data-dump",
		Short: "Dump and load obfuscated samples of PostgreSQL tables",
		Long: `Sample Data Dump

Extracts a bounded sample of rows from configured PostgreSQL tables, masks
sensitive columns, writes the sample as a replayable SQL script and loads it
back into another database.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to settings file (default: ./sample_data_dump.yml)")
	rootCmd.PersistentFlags().StringVarP(&opts.envFile, "env-file", "e", ".env", "Path to .env file")
	rootCmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&opts.host, "host", "H", "", "PostgreSQL host (default: PGHOST or localhost)")
	rootCmd.PersistentFlags().StringVarP(&opts.user, "user", "u", "", "PostgreSQL user (default: PGUSER)")
	rootCmd.PersistentFlags().StringVarP(&opts.password, "password", "p", "", "PostgreSQL password (default: PGPASSWORD)")
	rootCmd.PersistentFlags().StringVarP(&opts.database, "database", "d", "", "PostgreSQL database name (default: PGDATABASE)")
	rootCmd.PersistentFlags().StringVarP(&opts.port, "port", "P", "", "PostgreSQL port (default: PGPORT or 5432)")
	rootCmd.PersistentFlags().StringSliceVarP(&opts.tables, "table", "t", nil, "Only process these schema.table names")

	rootCmd.AddCommand(
		newValidateCommand(opts),
		newDumpCommand(opts),
		newLoadCommand(opts),
		newWipeCommand(opts),
		newResetSequencesCommand(opts),
		newPlanCommand(opts),
		newInstallGeneratorCommand(opts),
		newPushCommand(opts),
		newPullCommand(opts),
		newCleanCommand(opts),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
