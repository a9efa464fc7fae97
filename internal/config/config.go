// Package config handles configuration loading for dispatch.
// It supports XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for dispatch.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Limits    LimitsConfig    `mapstructure:"limits"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// WorkersConfig bounds concurrent execution.
type WorkersConfig struct {
	// Max is the wave-wide concurrent worker ceiling.
	Max int `mapstructure:"max"`
}

// TimeoutsConfig holds execution timeouts.
type TimeoutsConfig struct {
	// UnitIdle is the max silence between progress signals per unit.
	UnitIdle time.Duration `mapstructure:"unit_idle"`
	// UnitAbsolute is the hard per-unit runtime ceiling.
	UnitAbsolute time.Duration `mapstructure:"unit_absolute"`
	// Wave bounds one whole wave of parallel units.
	Wave time.Duration `mapstructure:"wave"`
}

// LimitsConfig holds loop and text ceilings.
type LimitsConfig struct {
	// PlannerCycles is the expected number of planning iterations; the
	// engine's hard ceiling is PlannerCycles * IterationMultiplier.
	PlannerCycles       int `mapstructure:"planner_cycles"`
	IterationMultiplier int `mapstructure:"iteration_multiplier"`
	// CompactChars and DetailedChars cap worker report text lengths.
	CompactChars  int `mapstructure:"compact_chars"`
	DetailedChars int `mapstructure:"detailed_chars"`
}

// Load loads configuration with the following precedence (highest to
// lowest): environment variables, project config (.dispatch/config.yaml
// in the current directory or a parent), user config
// (~/.config/dispatch/config.yaml), built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("workers.max", cfg.Workers.Max)
	v.Set("timeouts.unit_idle", cfg.Timeouts.UnitIdle.String())
	v.Set("timeouts.unit_absolute", cfg.Timeouts.UnitAbsolute.String())
	v.Set("timeouts.wave", cfg.Timeouts.Wave.String())
	v.Set("limits.planner_cycles", cfg.Limits.PlannerCycles)
	v.Set("limits.iteration_multiplier", cfg.Limits.IterationMultiplier)
	v.Set("limits.compact_chars", cfg.Limits.CompactChars)
	v.Set("limits.detailed_chars", cfg.Limits.DetailedChars)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if
// it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("workers.max", 4)

	v.SetDefault("timeouts.unit_idle", "2m")
	v.SetDefault("timeouts.unit_absolute", "10m")
	v.SetDefault("timeouts.wave", "30m")

	v.SetDefault("limits.planner_cycles", 8)
	v.SetDefault("limits.iteration_multiplier", 3)
	v.SetDefault("limits.compact_chars", 24000)
	v.SetDefault("limits.detailed_chars", 80000)
}

// getUserConfigDir returns the XDG config directory for dispatch.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dispatch")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "dispatch")
	}
	return filepath.Join(home, ".config", "dispatch")
}

// findProjectConfig searches for .dispatch/config.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".dispatch", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Workers: WorkersConfig{Max: 4},
		Timeouts: TimeoutsConfig{
			UnitIdle:     2 * time.Minute,
			UnitAbsolute: 10 * time.Minute,
			Wave:         30 * time.Minute,
		},
		Limits: LimitsConfig{
			PlannerCycles:       8,
			IterationMultiplier: 3,
			CompactChars:        24000,
			DetailedChars:       80000,
		},
	}
}

// MaxIterations returns the engine's hard iteration ceiling.
func (c *Config) MaxIterations() int {
	cycles := c.Limits.PlannerCycles
	if cycles < 1 {
		cycles = 1
	}
	mult := c.Limits.IterationMultiplier
	if mult < 1 {
		mult = 1
	}
	return cycles * mult
}
