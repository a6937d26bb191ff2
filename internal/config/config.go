// Package config loads the command line configuration and the table and
// schema documents an index is created from.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nonibytes/cellindex/cellindex/row"
	"github.com/nonibytes/cellindex/cellindex/schema"
)

// EnvPrefix prefixes environment overrides, e.g. CELLINDEX_SQLITE_DIR.
const EnvPrefix = "CELLINDEX"

type Config struct {
	Backend string `mapstructure:"backend"`

	SQLite struct {
		Dir    string `mapstructure:"dir"`
		Driver string `mapstructure:"driver"`
	} `mapstructure:"sqlite"`

	Postgres struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"postgres"`

	Log struct {
		Level    string `mapstructure:"level"`
		Encoding string `mapstructure:"encoding"`
	} `mapstructure:"log"`

	Index struct {
		Workers      int `mapstructure:"workers"`
		MinPrefixLen int `mapstructure:"min_prefix_len"`
		MaxTerms     int `mapstructure:"max_terms"`
		MaxDepth     int `mapstructure:"max_depth"`
	} `mapstructure:"index"`

	Format      string `mapstructure:"format"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"backend":       "backend",
	"sqlite-dir":    "sqlite.dir",
	"sqlite-driver": "sqlite.driver",
	"pg-dsn":        "postgres.dsn",
	"log-level":     "log.level",
	"log-format":    "log.encoding",
	"workers":       "index.workers",
	"format":        "format",
	"metrics-file":  "metrics_file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", "sqlite")
	v.SetDefault("sqlite.dir", ".")
	v.SetDefault("sqlite.driver", "sqlite")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("index.min_prefix_len", 1)
	v.SetDefault("index.max_terms", 1024)
	v.SetDefault("index.max_depth", 32)
	v.SetDefault("format", "pretty")
}

// Load reads path (optional), then CELLINDEX_* environment variables, then
// the flags set on the command line, later sources winning.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	switch cfg.Backend {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return &cfg, nil
}

// LoadTable reads a table document, YAML or JSON by file extension.
func LoadTable(path string) (row.Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return row.Table{}, fmt.Errorf("read table: %w", err)
	}
	var spec row.TableSpec
	if err := v.Unmarshal(&spec); err != nil {
		return row.Table{}, fmt.Errorf("unmarshal table: %w", err)
	}
	table, err := spec.Build()
	if err != nil {
		return row.Table{}, fmt.Errorf("table %s: %w", path, err)
	}
	return table, nil
}

// LoadSchema reads a JSON schema document.
func LoadSchema(path string) (schema.Spec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return schema.Spec{}, fmt.Errorf("read schema: %w", err)
	}
	return schema.ParseSpec(b)
}
