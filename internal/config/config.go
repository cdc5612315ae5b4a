// Package config loads tutord settings from defaults, an optional YAML file
// and TUTORD_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/abhisek/tutord/internal/assessment"
	"github.com/abhisek/tutord/internal/logging"
	"github.com/abhisek/tutord/internal/store"
)

// EnvPrefix is prepended to every environment variable, so policy.break_cooldown
// is read from TUTORD_POLICY_BREAK_COOLDOWN.
const EnvPrefix = "TUTORD"

// Config is the full runtime configuration.
type Config struct {
	Store  store.Config      `mapstructure:"store"`
	Policy assessment.Policy `mapstructure:"policy"`
	Log    logging.Config    `mapstructure:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Store:  store.Config{Driver: store.DriverSQLite},
		Policy: assessment.DefaultPolicy(),
		Log:    logging.DefaultConfig(),
	}
}

// Validate checks every section and reports the first problem found.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.key_prefix", d.Store.KeyPrefix)

	p := d.Policy
	v.SetDefault("policy.retention_window", p.RetentionWindow)
	v.SetDefault("policy.mastery_window", p.MasteryWindow)
	v.SetDefault("policy.mastery_decay", p.MasteryDecay)
	v.SetDefault("policy.confidence_attempts", p.ConfidenceAttempts)
	v.SetDefault("policy.trajectory_window", p.TrajectoryWindow)
	v.SetDefault("policy.trajectory_min_attempts", p.TrajectoryMinAttempts)
	v.SetDefault("policy.trajectory_threshold", p.TrajectoryThreshold)
	v.SetDefault("policy.break_cooldown", p.BreakCooldown)
	v.SetDefault("policy.fatigue_after", p.FatigueAfter)
	v.SetDefault("policy.declining_error_streak", p.DecliningErrorStreak)
	v.SetDefault("policy.error_streak_limit", p.ErrorStreakLimit)
	v.SetDefault("policy.productive_failure_threshold", p.ProductiveFailureThreshold)
	v.SetDefault("policy.mastery_floor", p.MasteryFloor)
	v.SetDefault("policy.go_back_min_errors", p.GoBackMinErrors)
	v.SetDefault("policy.advance_mastery", p.AdvanceMastery)

	l := d.Log
	v.SetDefault("log.level", l.Level)
	v.SetDefault("log.format", l.Format)
	v.SetDefault("log.file", l.File)
	v.SetDefault("log.max_size_mb", l.MaxSizeMB)
	v.SetDefault("log.max_backups", l.MaxBackups)
	v.SetDefault("log.max_age_days", l.MaxAgeDays)
	v.SetDefault("log.compress", l.Compress)
}
