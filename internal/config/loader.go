// Package config loads goherd configuration from file, environment, and
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fleetworks/goherd/pkg/notify"
)

// Config is the fully-resolved goherd configuration.
type Config struct {
	// CollectionsDir is the directory holding collection state files.
	CollectionsDir string `mapstructure:"collections_dir"`

	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Lock          LockConfig          `mapstructure:"lock"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// SchedulerConfig controls how job states are queried from the external
// scheduler.
type SchedulerConfig struct {
	// QueryCommand is the argv invoked to resolve job states. The job ids
	// are appended as a single comma-joined argument.
	QueryCommand []string `mapstructure:"query_command"`

	QueryTimeout     time.Duration `mapstructure:"query_timeout"`
	QueryConcurrency int           `mapstructure:"query_concurrency"`
	QueryRate        float64       `mapstructure:"query_rate"`
	BatchSize        int           `mapstructure:"batch_size"`
}

// LockConfig controls collection lock acquisition.
type LockConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotificationsConfig holds route definitions and evaluation knobs.
type NotificationsConfig struct {
	Defaults        notify.Defaults       `mapstructure:"defaults"`
	Routes          []notify.RouteSpec    `mapstructure:"routes"`
	CollectionFinal CollectionFinalConfig `mapstructure:"collection_final"`
}

// CollectionFinalConfig tunes the collection-final evaluation and report.
type CollectionFinalConfig struct {
	MinSupport                   int           `mapstructure:"min_support"`
	TopK                         int           `mapstructure:"top_k"`
	IncludeFailedOutputTailLines int           `mapstructure:"include_failed_output_tail_lines"`
	SummaryCommand               []string      `mapstructure:"summary_command"`
	SummaryTimeout               time.Duration `mapstructure:"summary_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the given file (optional), environment
// variables with the GOHERD prefix, and built-in defaults. An empty path
// searches the standard locations and tolerates a missing file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("GOHERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("goherd")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "goherd"))
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.CollectionsDir == "" {
		return nil, fmt.Errorf("collections_dir must not be empty")
	}
	cfg.CollectionsDir = expandHome(cfg.CollectionsDir)
	cfg.Notifications.Defaults = cfg.Notifications.Defaults.Normalize()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("collections_dir", "~/.goherd/collections")

	v.SetDefault("scheduler.query_timeout", 30*time.Second)
	v.SetDefault("scheduler.query_concurrency", 4)
	v.SetDefault("scheduler.query_rate", 0.0)
	v.SetDefault("scheduler.batch_size", 50)

	v.SetDefault("lock.timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")

	v.SetDefault("notifications.collection_final.min_support", 3)
	v.SetDefault("notifications.collection_final.top_k", 10)
	v.SetDefault("notifications.collection_final.include_failed_output_tail_lines", 40)
	v.SetDefault("notifications.collection_final.summary_timeout", 30*time.Second)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
