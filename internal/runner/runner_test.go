package runner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/config"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/connector"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/dumpfile"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/gateway"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/planner"
	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/validator"
	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

// fakeGateway records the calls made to it and writes scripts into dir
type fakeGateway struct {
	dir      string
	calls    []string
	invalid  map[string]string
	failing  map[string]error
	missing  map[string]bool
	validErr error
}

var _ gateway.DataStoreGateway = (*fakeGateway)(nil)

func (f *fakeGateway) call(op string, tc models.TableConfiguration) error {
	f.calls = append(f.calls, op+" "+tc.QualifiedTableName())
	return f.failing[op+" "+tc.QualifiedTableName()]
}

func (f *fakeGateway) DumpToLocalFile(tc models.TableConfiguration) (string, error) {
	if err := f.call("dump", tc); err != nil {
		return "", err
	}
	df := dumpfile.New(tc, f.dir)
	file, err := df.Create()
	if err != nil {
		return "", err
	}
	defer file.Close()
	if _, err := file.WriteString("SELECT 'No rows to load'\n"); err != nil {
		return "", err
	}
	return df.LocalDumpFilePath(), nil
}

func (f *fakeGateway) LoadDumpFile(tc models.TableConfiguration) error {
	if err := f.call("load", tc); err != nil {
		return err
	}
	if f.missing[tc.QualifiedTableName()] {
		return &gateway.MissingDumpFileError{Path: tc.QualifiedTableName() + ".sql"}
	}
	return nil
}

func (f *fakeGateway) ResetSequence(tc models.TableConfiguration) error {
	return f.call("reset", tc)
}

func (f *fakeGateway) Valid(tc models.TableConfiguration) (validator.Result, error) {
	f.calls = append(f.calls, "valid "+tc.QualifiedTableName())
	if f.validErr != nil {
		return validator.Result{}, f.validErr
	}
	if reason, ok := f.invalid[tc.QualifiedTableName()]; ok {
		return validator.Failure(reason), nil
	}
	return validator.Success(), nil
}

func (f *fakeGateway) WipeTable(tc models.TableConfiguration) error {
	return f.call("wipe", tc)
}

var (
	users = models.TableConfiguration{SchemaName: "public", TableName: "users", DumpWhere: "true"}
	posts = models.TableConfiguration{SchemaName: "public", TableName: "posts", DumpWhere: "true"}
)

func testPlan() *planner.Plan {
	return planner.BuildPlan(
		[]models.TableConfiguration{posts, users},
		[]models.ForeignKey{{Table: "public.posts", Column: "user_id", ReferencedTable: "public.users", ReferencedColumn: "id"}},
	)
}

func TestValidateAll(t *testing.T) {
	r, gw := newTestRunner(t, "development")
	gw.invalid = map[string]string{"public.posts": "schema public does not exist"}

	var reported []string
	r.OnTable = func(result models.TableResult) { reported = append(reported, result.Table) }

	batch, err := r.ValidateAll([]models.TableConfiguration{users, posts})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if batch.Success() {
		t.Error("Expected batch to fail")
	}
	if len(batch.FailedTables) != 1 || batch.FailedTables[0] != "public.posts" {
		t.Errorf("Expected [public.posts] to fail, got %v", batch.FailedTables)
	}
	if batch.Tables[1].Status != models.StatusInvalid || batch.Tables[1].Message != "schema public does not exist" {
		t.Errorf("Unexpected result: %+v", batch.Tables[1])
	}
	if len(reported) != 2 {
		t.Errorf("Expected progress for 2 tables, got %v", reported)
	}
	if !r.FailedTables["public.posts"] {
		t.Error("Expected public.posts to be tracked as failed")
	}
}

func TestValidateAllAbortsOnTransportErrors(t *testing.T) {
	r, gw := newTestRunner(t, "development")
	gw.validErr = errors.New("connection refused")

	if _, err := r.ValidateAll([]models.TableConfiguration{users, posts}); err == nil {
		t.Error("Expected an error, got nil")
	}
	if len(gw.calls) != 1 {
		t.Errorf("Expected the run to stop after the first table, got %v", gw.calls)
	}
}

func TestDumpAll(t *testing.T) {
	r, gw := newTestRunner(t, "development")
	gw.invalid = map[string]string{"public.posts": "public.posts does not exist"}

	batch, err := r.DumpAll([]models.TableConfiguration{users, posts})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expectedCalls := "valid public.users,dump public.users,valid public.posts"
	if strings.Join(gw.calls, ",") != expectedCalls {
		t.Errorf("Expected calls %s, got %v", expectedCalls, gw.calls)
	}

	ok := batch.Tables[0]
	if ok.Status != models.StatusOK || ok.Size == 0 {
		t.Errorf("Expected compressed dump for public.users, got %+v", ok)
	}
	if ok.Path != filepath.Join(gw.dir, "public.users.sql.gz") {
		t.Errorf("Unexpected compressed path: %s", ok.Path)
	}
	if _, err := os.Stat(ok.Path); err != nil {
		t.Errorf("Expected compressed dump on disk, got %v", err)
	}
	if batch.Tables[1].Status != models.StatusInvalid {
		t.Errorf("Expected public.posts to be invalid, got %+v", batch.Tables[1])
	}
}

func TestDumpAllRecordsStatementErrors(t *testing.T) {
	r, gw := newTestRunner(t, "development")
	gw.failing = map[string]error{
		"dump public.users": &connector.QueryError{Class: connector.ClassStatement, Err: &pgconn.PgError{Code: "42601"}},
	}

	batch, err := r.DumpAll([]models.TableConfiguration{users, posts})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if batch.Tables[0].Status != models.StatusFailed || batch.Tables[1].Status != models.StatusOK {
		t.Errorf("Unexpected results: %+v", batch.Tables)
	}
}

func TestLoadAll(t *testing.T) {
	r, gw := newTestRunner(t, "development")

	// only users has a compressed dump; posts is missing
	if _, err := gw.DumpToLocalFile(users); err != nil {
		t.Fatalf("Failed to write dump: %v", err)
	}
	if _, err := dumpfile.New(users, gw.dir).Compress(); err != nil {
		t.Fatalf("Failed to compress dump: %v", err)
	}
	os.Remove(dumpfile.New(users, gw.dir).LocalDumpFilePath())
	gw.calls = nil
	gw.missing = map[string]bool{"public.posts": true}

	batch, err := r.LoadAll(testPlan())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expectedCalls := "wipe public.posts,wipe public.users,load public.users,reset public.users,load public.posts"
	if strings.Join(gw.calls, ",") != expectedCalls {
		t.Errorf("Expected calls %s, got %v", expectedCalls, gw.calls)
	}
	if _, err := os.Stat(dumpfile.New(users, gw.dir).LocalDumpFilePath()); err != nil {
		t.Errorf("Expected dump to be decompressed, got %v", err)
	}
	if batch.Tables[0].Status != models.StatusOK || batch.Tables[1].Status != models.StatusSkipped {
		t.Errorf("Unexpected results: %+v", batch.Tables)
	}
}

func TestLoadAllInProduction(t *testing.T) {
	r, gw := newTestRunner(t, "production")

	if _, err := r.LoadAll(testPlan()); !errors.Is(err, gateway.ErrLoadInProduction) {
		t.Errorf("Expected ErrLoadInProduction, got %v", err)
	}
	if len(gw.calls) != 0 {
		t.Errorf("Expected no gateway calls, got %v", gw.calls)
	}
}

func TestLoadAllSkipsTablesThatFailedToWipe(t *testing.T) {
	r, gw := newTestRunner(t, "development")
	gw.failing = map[string]error{
		"wipe public.posts": &connector.QueryError{Class: connector.ClassStatement, Err: &pgconn.PgError{Code: "42P01"}},
	}

	batch, err := r.LoadAll(testPlan())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if batch.Tables[1].Table != "public.posts" || batch.Tables[1].Status != models.StatusSkipped {
		t.Errorf("Expected public.posts to be skipped, got %+v", batch.Tables[1])
	}
}

func TestWipeAllAndResetSequences(t *testing.T) {
	r, gw := newTestRunner(t, "development")

	if _, err := r.WipeAll(testPlan()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := r.ResetSequences([]models.TableConfiguration{users}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expectedCalls := "wipe public.posts,wipe public.users,reset public.users"
	if strings.Join(gw.calls, ",") != expectedCalls {
		t.Errorf("Expected calls %s, got %v", expectedCalls, gw.calls)
	}
}

func newTestRunner(t *testing.T, environment string) (*Runner, *fakeGateway) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	dir := t.TempDir()
	settings := &config.Settings{CompactedDumpDirectory: dir, LoremIpsumFunctionSchema: "public", Environment: environment}
	gw := &fakeGateway{dir: dir}
	return NewRunner(gw, settings, logger), gw
}
