package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/dumpfile"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/gateway"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/generator"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/planner"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/storage"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/utils"
	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

func newValidateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every table configuration against the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newConnectedApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			r, stop := a.newRunner("Validating", len(a.tables))
			batch, err := r.ValidateAll(a.tables)
			stop()
			if err != nil {
				return err
			}

			utils.PrintSummary(os.Stdout, "VALIDATION SUMMARY", batch)
			return failedTablesError(batch)
		},
	}
}

func newDumpCommand(opts *options) *cobra.Command {
	var clean bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump an obfuscated sample of every configured table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newConnectedApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			if clean {
				if err := dumpfile.CleanDumpDirectory(a.settings.CompactedDumpDirectory); err != nil {
					return err
				}
			}

			r, stop := a.newRunner("Dumping", len(a.tables))
			batch, err := r.DumpAll(a.tables)
			stop()
			if err != nil {
				return err
			}

			utils.PrintSummary(os.Stdout, "DUMP SUMMARY", batch)
			return failedTablesError(batch)
		},
	}

	cmd.Flags().BoolVar(&clean, "clean", false, "Empty the dump directory first")
	return cmd
}

func newLoadCommand(opts *options) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Wipe the configured tables and load their dumps",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			if a.settings.IsProduction() {
				a.logger.Fatal(gateway.ErrLoadInProduction)
			}
			if err := a.connect(opts); err != nil {
				return err
			}
			defer a.close()

			plan, err := planner.NewPlanner(a.db, a.logger).Plan(a.tables)
			if err != nil {
				return err
			}

			r, stop := a.newRunner("Loading", len(plan.LoadOrder))
			batch, err := r.LoadAll(plan)
			stop()
			if errors.Is(err, gateway.ErrLoadInProduction) {
				a.logger.Fatal(err)
			}
			if err != nil {
				return err
			}

			utils.PrintSummary(os.Stdout, "LOAD SUMMARY", batch)

			if verify {
				counts, emptyTables := utils.VerifyLoadedTables(a.db, plan.LoadOrder, a.logger)
				utils.PrintVerificationResults(os.Stdout, counts, emptyTables)
			}
			return failedTablesError(batch)
		},
	}

	cmd.Flags().BoolVarP(&verify, "verify", "v", false, "Count the rows of every table after loading")
	return cmd
}

func newWipeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "wipe",
		Short: "Delete every row of the configured tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			if a.settings.IsProduction() {
				return fmt.Errorf("refusing to wipe tables in production")
			}
			if err := a.connect(opts); err != nil {
				return err
			}
			defer a.close()

			plan, err := planner.NewPlanner(a.db, a.logger).Plan(a.tables)
			if err != nil {
				return err
			}

			r, stop := a.newRunner("Wiping", len(plan.WipeOrder))
			batch, err := r.WipeAll(plan)
			stop()
			if err != nil {
				return err
			}

			utils.PrintSummary(os.Stdout, "WIPE SUMMARY", batch)
			return failedTablesError(batch)
		},
	}
}

func newResetSequencesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-sequences",
		Short: "Move every id sequence past the highest id of its table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newConnectedApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			r, stop := a.newRunner("Resetting", len(a.tables))
			batch, err := r.ResetSequences(a.tables)
			stop()
			if err != nil {
				return err
			}

			utils.PrintSummary(os.Stdout, "SEQUENCE RESET SUMMARY", batch)
			return nil
		},
	}
}

func newPlanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the order tables are wiped and loaded in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newConnectedApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			plan, err := planner.NewPlanner(a.db, a.logger).Plan(a.tables)
			if err != nil {
				return err
			}
			utils.PrintPlan(os.Stdout, plan)
			return nil
		},
	}
}

func newInstallGeneratorCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "install-generator",
		Short: "Create the SQL function that fills masked columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newConnectedApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			return generator.NewLoremIpsumInstaller(a.db, a.settings.LoremIpsumFunctionSchema, a.logger).Install()
		},
	}
}

func newPushCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload compressed dumps to the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}

			store, err := storage.NewS3Store(cmd.Context(), a.settings.Remote, a.logger)
			if err != nil {
				return err
			}

			var batch models.BatchResult
			for _, tc := range a.tables {
				df := dumpfile.New(tc, a.settings.CompactedDumpDirectory)
				size, err := store.Upload(cmd.Context(), store.ObjectKey(df.CompressedFileName()), df.LocalCompressedDumpFilePath())
				batch = appendTransfer(batch, tc, size, err)
			}

			utils.PrintSummary(os.Stdout, "PUSH SUMMARY", batch)
			return failedTablesError(batch)
		},
	}
}

func newPullCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download compressed dumps from the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}

			store, err := storage.NewS3Store(cmd.Context(), a.settings.Remote, a.logger)
			if err != nil {
				return err
			}

			var batch models.BatchResult
			for _, tc := range a.tables {
				df := dumpfile.New(tc, a.settings.CompactedDumpDirectory)
				size, err := store.Download(cmd.Context(), store.ObjectKey(df.CompressedFileName()), df.LocalCompressedDumpFilePath())
				batch = appendTransfer(batch, tc, size, err)
			}

			utils.PrintSummary(os.Stdout, "PULL SUMMARY", batch)
			return failedTablesError(batch)
		},
	}
}

func newCleanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Empty the dump directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			if err := dumpfile.CleanDumpDirectory(a.settings.CompactedDumpDirectory); err != nil {
				return err
			}
			a.logger.Infof("Cleaned %s", a.settings.CompactedDumpDirectory)
			return nil
		},
	}
}

func appendTransfer(batch models.BatchResult, tc models.TableConfiguration, size int64, err error) models.BatchResult {
	result := models.TableResult{Table: tc.QualifiedTableName(), Status: models.StatusOK, Size: size}
	if err != nil {
		result.Status = models.StatusFailed
		result.Message = err.Error()
		batch.FailedTables = append(batch.FailedTables, result.Table)
	} else {
		batch.SuccessfulTables = append(batch.SuccessfulTables, result.Table)
	}
	batch.Tables = append(batch.Tables, result)
	return batch
}
