// Package config provides Viper-based configuration loading for walksim.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/walksim/internal/game/batch"
	"github.com/cory-johannsen/walksim/internal/game/dice"
	"github.com/cory-johannsen/walksim/internal/game/walk"
)

// WalkConfig holds the parameters of every walk in a run.
type WalkConfig struct {
	Start int `mapstructure:"start"`
	Floor int `mapstructure:"floor"`
	// Ceiling optionally clamps positions from above; unset means unbounded.
	Ceiling    *int `mapstructure:"ceiling"`
	TurnBudget int  `mapstructure:"turn_budget"`
	// Target is the position that counts as success.
	Target       *int `mapstructure:"target"`
	StopAtTarget bool `mapstructure:"stop_at_target"`
	// ResetProbability is the per-turn chance of the rare floor reset.
	ResetProbability float64 `mapstructure:"reset_probability"`
	// Seed is the base seed. Ignored when SeedText is set.
	Seed int64 `mapstructure:"seed"`
	// SeedText, when non-empty, is hashed into the base seed.
	SeedText string `mapstructure:"seed_text"`
}

// ToWalk converts the section into a walk configuration.
//
// Postcondition: Seed is derived from SeedText when SeedText is non-empty.
func (w WalkConfig) ToWalk() walk.Config {
	seed := w.Seed
	if w.SeedText != "" {
		seed = dice.SeedFromString(w.SeedText)
	}
	return walk.Config{
		Start:            w.Start,
		Floor:            w.Floor,
		Ceiling:          w.Ceiling,
		TurnBudget:       w.TurnBudget,
		Target:           w.Target,
		StopAtTarget:     w.StopAtTarget,
		ResetProbability: w.ResetProbability,
		Seed:             seed,
	}
}

// BatchConfig holds batch execution settings.
type BatchConfig struct {
	// Trials is the number of independent walks.
	Trials int `mapstructure:"trials"`
	// Strategy is one of "fixed", "derived", "unseeded".
	Strategy string `mapstructure:"strategy"`
	// Workers bounds parallel trials; 0 uses GOMAXPROCS.
	Workers          int  `mapstructure:"workers"`
	KeepTrajectories bool `mapstructure:"keep_trajectories"`
}

// SeedStrategy parses Strategy.
func (b BatchConfig) SeedStrategy() (batch.SeedStrategy, error) {
	return batch.ParseSeedStrategy(b.Strategy)
}

// Options returns the aggregator options for the section.
func (b BatchConfig) Options() batch.Options {
	return batch.Options{Workers: b.Workers, KeepTrajectories: b.KeepTrajectories}
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// ReportConfig holds result report settings.
type ReportConfig struct {
	// Format is "yaml" or "json".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Walk    WalkConfig    `mapstructure:"walk"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Logging LoggingConfig `mapstructure:"logging"`
	Report  ReportConfig  `mapstructure:"report"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateWalk(c.Walk); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBatch(c.Batch); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateReport(c.Report); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWalk(w WalkConfig) error {
	var errs []string
	if w.Target == nil {
		errs = append(errs, "walk.target must be set")
	}
	if err := w.ToWalk().Validate(); err != nil {
		errs = append(errs, "walk: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBatch(b BatchConfig) error {
	var errs []string
	if b.Trials < 1 {
		errs = append(errs, fmt.Sprintf("batch.trials must be >= 1, got %d", b.Trials))
	}
	if _, err := b.SeedStrategy(); err != nil {
		errs = append(errs, "batch."+err.Error())
	}
	if b.Workers < 0 {
		errs = append(errs, fmt.Sprintf("batch.workers must be >= 0, got %d", b.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateReport(r ReportConfig) error {
	validFormats := map[string]bool{"yaml": true, "json": true}
	if !validFormats[r.Format] {
		return fmt.Errorf("report.format must be one of [yaml, json], got %q", r.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with WALKSIM_ prefix
	v.SetEnvPrefix("WALKSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// walk.ceiling has no default, so AutomaticEnv alone never sees it.
	if err := v.BindEnv("walk.ceiling", "WALKSIM_WALK_CEILING"); err != nil {
		return Config{}, fmt.Errorf("binding walk.ceiling: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("walk.start", 0)
	v.SetDefault("walk.floor", 0)
	v.SetDefault("walk.turn_budget", 100)
	v.SetDefault("walk.target", 60)
	v.SetDefault("walk.stop_at_target", false)
	v.SetDefault("walk.reset_probability", 0.001)
	v.SetDefault("walk.seed", 123)
	v.SetDefault("walk.seed_text", "")

	v.SetDefault("batch.trials", 1000)
	v.SetDefault("batch.strategy", "derived")
	v.SetDefault("batch.workers", 0)
	v.SetDefault("batch.keep_trajectories", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("report.format", "yaml")
}
