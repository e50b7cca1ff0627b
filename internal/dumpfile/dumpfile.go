package dumpfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"

	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

const (
	sqlExtension        = ".sql"
	compressedExtension = ".gz"
)

// DumpFile locates the script files of one table inside the dump directory
type DumpFile struct {
	Config    models.TableConfiguration
	Directory string
}

// New creates a DumpFile for tc inside directory
func New(tc models.TableConfiguration, directory string) DumpFile {
	return DumpFile{Config: tc, Directory: directory}
}

// FileName is <schema>.<table>.sql
func (df DumpFile) FileName() string {
	return df.Config.QualifiedTableName() + sqlExtension
}

// CompressedFileName is <schema>.<table>.sql.gz
func (df DumpFile) CompressedFileName() string {
	return df.FileName() + compressedExtension
}

// LocalDumpFilePath is the path of the uncompressed script
func (df DumpFile) LocalDumpFilePath() string {
	return filepath.Join(df.Directory, df.FileName())
}

// LocalCompressedDumpFilePath is the path of the gzipped script
func (df DumpFile) LocalCompressedDumpFilePath() string {
	return filepath.Join(df.Directory, df.CompressedFileName())
}

// Create opens the uncompressed script for writing, creating the dump
// directory when needed and truncating any previous dump
func (df DumpFile) Create() (*os.File, error) {
	if err := os.MkdirAll(df.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create dump directory %s: %w", df.Directory, err)
	}
	f, err := os.Create(df.LocalDumpFilePath())
	if err != nil {
		return nil, fmt.Errorf("cannot create dump file: %w", err)
	}
	return f, nil
}

// Compress gzips the script next to itself. The uncompressed script is kept.
func (df DumpFile) Compress() (string, error) {
	src, err := os.Open(df.LocalDumpFilePath())
	if err != nil {
		return "", fmt.Errorf("cannot open dump file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(df.LocalCompressedDumpFilePath())
	if err != nil {
		return "", fmt.Errorf("cannot create compressed dump file: %w", err)
	}

	gz := pgzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		return "", fmt.Errorf("error compressing %s: %w", df.FileName(), err)
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		return "", fmt.Errorf("error closing gzip writer: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("error closing compressed dump file: %w", err)
	}
	return df.LocalCompressedDumpFilePath(), nil
}

// Decompress restores the script from its gzipped form, overwriting any
// existing uncompressed script
func (df DumpFile) Decompress() (string, error) {
	src, err := os.Open(df.LocalCompressedDumpFilePath())
	if err != nil {
		return "", fmt.Errorf("cannot open compressed dump file: %w", err)
	}
	defer src.Close()

	gz, err := pgzip.NewReader(src)
	if err != nil {
		return "", fmt.Errorf("cannot create pgzip reader: %w", err)
	}
	defer gz.Close()

	dst, err := os.Create(df.LocalDumpFilePath())
	if err != nil {
		return "", fmt.Errorf("cannot create dump file: %w", err)
	}
	if _, err := io.Copy(dst, gz); err != nil {
		dst.Close()
		return "", fmt.Errorf("error decompressing %s: %w", df.CompressedFileName(), err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("error closing dump file: %w", err)
	}
	return df.LocalDumpFilePath(), nil
}

// CleanDumpDirectory removes everything in dir and recreates it empty
func CleanDumpDirectory(dir string) error {
	if dir == "" || dir == "/" {
		return fmt.Errorf("refusing to clean dump directory %q", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cannot remove dump directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create dump directory: %w", err)
	}
	return nil
}
