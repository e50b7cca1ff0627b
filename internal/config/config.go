package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

const (
	// ProductionEnvironment marks a live environment; dumps are never loaded there
	ProductionEnvironment = "production"

	defaultDumpDirectory   = "sample_data_dump"
	defaultGeneratorSchema = "public"
	defaultEnvironment     = "development"
)

// DatabaseConfig holds connection parameters. Empty values fall back to the
// PG* environment variables.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RemoteConfig locates the S3 bucket compressed dumps are pushed to
type RemoteConfig struct {
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// Enabled reports whether a remote store is configured
func (rc RemoteConfig) Enabled() bool {
	return rc.Bucket != ""
}

// Settings is the tool configuration
type Settings struct {
	CompactedDumpDirectory   string                      `mapstructure:"compacted_dump_directory"`
	LoremIpsumFunctionSchema string                      `mapstructure:"lorem_ipsum_function_schema"`
	Environment              string                      `mapstructure:"environment"`
	Database                 DatabaseConfig              `mapstructure:"database"`
	Remote                   RemoteConfig                `mapstructure:"remote"`
	Tables                   []models.TableConfiguration `mapstructure:"tables"`
}

// IsProduction reports whether the settings describe a live environment
func (s *Settings) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(s.Environment), ProductionEnvironment)
}

// Table returns the configuration of the table with the given qualified name
func (s *Settings) Table(qualifiedName string) (models.TableConfiguration, bool) {
	for _, tc := range s.Tables {
		if tc.QualifiedTableName() == qualifiedName {
			return tc, true
		}
	}
	return models.TableConfiguration{}, false
}

// SelectTables returns the configured tables named in names, all tables when
// names is empty
func (s *Settings) SelectTables(names []string) ([]models.TableConfiguration, error) {
	if len(names) == 0 {
		return s.Tables, nil
	}

	selected := make([]models.TableConfiguration, 0, len(names))
	for _, name := range names {
		tc, ok := s.Table(name)
		if !ok {
			return nil, fmt.Errorf("table %s is not configured", name)
		}
		selected = append(selected, tc)
	}
	return selected, nil
}

// Validate checks that the settings are usable
func (s *Settings) Validate() error {
	var errs []error
	if s.CompactedDumpDirectory == "" {
		errs = append(errs, errors.New("compacted_dump_directory is required"))
	}
	if s.LoremIpsumFunctionSchema == "" {
		errs = append(errs, errors.New("lorem_ipsum_function_schema is required"))
	}

	seen := make(map[string]bool)
	for i, tc := range s.Tables {
		if tc.SchemaName == "" || tc.TableName == "" {
			errs = append(errs, fmt.Errorf("tables[%d]: schema_name and table_name are required", i))
			continue
		}
		if tc.DumpWhere == "" {
			errs = append(errs, fmt.Errorf("tables[%d]: dump_where is required for %s", i, tc.QualifiedTableName()))
		}
		if seen[tc.QualifiedTableName()] {
			errs = append(errs, fmt.Errorf("tables[%d]: %s is configured twice", i, tc.QualifiedTableName()))
		}
		seen[tc.QualifiedTableName()] = true
	}
	return errors.Join(errs...)
}

// envKeys are the nested settings that can come from the environment alone,
// e.g. SAMPLE_DATA_DUMP_DATABASE_PASSWORD for database.password
var envKeys = []string{
	"database.host",
	"database.port",
	"database.user",
	"database.password",
	"database.dbname",
	"database.sslmode",
	"remote.bucket",
	"remote.prefix",
	"remote.region",
	"remote.endpoint",
	"remote.force_path_style",
}

// Load reads settings from the YAML file at path. SAMPLE_DATA_DUMP_ prefixed
// environment variables override the top level settings and those in
// envKeys; APP_ENV sets the environment.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetDefault("compacted_dump_directory", defaultDumpDirectory)
	v.SetDefault("lorem_ipsum_function_schema", defaultGeneratorSchema)
	v.SetDefault("environment", defaultEnvironment)

	v.SetEnvPrefix("SAMPLE_DATA_DUMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("environment", "SAMPLE_DATA_DUMP_ENVIRONMENT", "APP_ENV"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}
	// AutomaticEnv only reaches Unmarshal for keys viper already knows
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("sample_data_dump")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &settings, nil
}
