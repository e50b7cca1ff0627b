package dumpfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaswdr/faker"

	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

var testConfiguration = models.TableConfiguration{
	SchemaName: "my_schema_name",
	TableName:  "my_table_name",
	DumpWhere:  "column_name = 123",
}

func TestPaths(t *testing.T) {
	df := New(testConfiguration, "/tmp/dumps")

	if got := df.LocalDumpFilePath(); got != "/tmp/dumps/my_schema_name.my_table_name.sql" {
		t.Errorf("Unexpected dump file path: %s", got)
	}
	if got := df.LocalCompressedDumpFilePath(); got != "/tmp/dumps/my_schema_name.my_table_name.sql.gz" {
		t.Errorf("Unexpected compressed dump file path: %s", got)
	}
}

func TestCompressDecompress(t *testing.T) {
	fake := faker.New()
	dir := filepath.Join(t.TempDir(), "nested")
	df := New(testConfiguration, dir)

	f, err := df.Create()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	content := "DELETE FROM my_schema_name.my_table_name;\n-- " + strings.Repeat(fake.Lorem().Sentence(8), 50) + "\n"
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("Failed to write dump: %v", err)
	}
	f.Close()

	compressed, err := df.Compress()
	if err != nil {
		t.Fatalf("Expected no error compressing, got %v", err)
	}
	if compressed != df.LocalCompressedDumpFilePath() {
		t.Errorf("Expected %s, got %s", df.LocalCompressedDumpFilePath(), compressed)
	}
	if _, err := os.Stat(df.LocalDumpFilePath()); err != nil {
		t.Errorf("Expected uncompressed dump to be kept, got %v", err)
	}

	if err := os.Remove(df.LocalDumpFilePath()); err != nil {
		t.Fatalf("Failed to remove dump: %v", err)
	}

	restored, err := df.Decompress()
	if err != nil {
		t.Fatalf("Expected no error decompressing, got %v", err)
	}
	data, err := os.ReadFile(restored)
	if err != nil {
		t.Fatalf("Failed to read restored dump: %v", err)
	}
	if string(data) != content {
		t.Errorf("Restored dump differs from original")
	}
}

func TestDecompressMissingFile(t *testing.T) {
	df := New(testConfiguration, t.TempDir())
	if _, err := df.Decompress(); err == nil {
		t.Error("Expected an error for a missing compressed dump, got nil")
	}
}

func TestCleanDumpDirectory(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.sql")
	if err := os.WriteFile(stale, []byte("SELECT 1"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := CleanDumpDirectory(dir); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Expected directory to exist, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty directory, got %d entries", len(entries))
	}

	if err := CleanDumpDirectory(""); err == nil {
		t.Error("Expected an error for an empty directory name, got nil")
	}
}
