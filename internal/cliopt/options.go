package cliopt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nonibytes/cellindex/cellindex/metrics"
	"github.com/nonibytes/cellindex/internal/config"
)

// GlobalOptions are bound once at the CLI root and filled in before any
// subcommand runs.
//
// NOTE: This is a separate package to avoid import cycles between the root
// command and per-command code.
type GlobalOptions struct {
	ConfigPath string

	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// BindGlobalFlags registers the persistent flags. Their defaults are empty so
// an unset flag never hides a value from the config file or environment.
func BindGlobalFlags(fs *pflag.FlagSet, g *GlobalOptions) {
	fs.StringVarP(&g.ConfigPath, "config", "c", "", "config file (yaml, json or toml)")

	fs.String("backend", "sqlite", "backend: sqlite|postgres")
	fs.String("sqlite-dir", ".", "directory holding <index>.db files")
	fs.String("sqlite-driver", "sqlite", "sqlite driver: sqlite (modernc) or sqlite3 (mattn)")
	fs.String("pg-dsn", "", "postgres DSN; each index lives in its own schema")

	fs.String("log-level", "warn", "log level: debug|info|warn|error")
	fs.String("log-format", "console", "log encoding: console|json")
	fs.Int("workers", 0, "concurrent document builders (0 = GOMAXPROCS)")
	fs.String("format", "pretty", "output: pretty|keys|json")
	fs.String("metrics-file", "", "write Prometheus metrics to this file on exit")
}
