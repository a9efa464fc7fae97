package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ShayCichocki/dispatch/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify dispatch configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/dispatch/config.yaml
Project-specific overrides can be placed in .dispatch/config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = config.MaskAPIKey(cfg.Anthropic.APIKey)
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
	fmt.Printf("anthropic.aws_profile: %s\n", cfg.Anthropic.AWSProfile)
	fmt.Printf("workers.max: %d\n", cfg.Workers.Max)
	fmt.Printf("timeouts.unit_idle: %s\n", cfg.Timeouts.UnitIdle)
	fmt.Printf("timeouts.unit_absolute: %s\n", cfg.Timeouts.UnitAbsolute)
	fmt.Printf("timeouts.wave: %s\n", cfg.Timeouts.Wave)
	fmt.Printf("limits.planner_cycles: %d\n", cfg.Limits.PlannerCycles)
	fmt.Printf("limits.iteration_multiplier: %d\n", cfg.Limits.IterationMultiplier)
	fmt.Printf("limits.compact_chars: %d\n", cfg.Limits.CompactChars)
	fmt.Printf("limits.detailed_chars: %d\n", cfg.Limits.DetailedChars)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "workers.max":
		return strconv.Itoa(cfg.Workers.Max), nil
	case "timeouts.unit_idle":
		return cfg.Timeouts.UnitIdle.String(), nil
	case "timeouts.unit_absolute":
		return cfg.Timeouts.UnitAbsolute.String(), nil
	case "timeouts.wave":
		return cfg.Timeouts.Wave.String(), nil
	case "limits.planner_cycles":
		return strconv.Itoa(cfg.Limits.PlannerCycles), nil
	case "limits.iteration_multiplier":
		return strconv.Itoa(cfg.Limits.IterationMultiplier), nil
	case "limits.compact_chars":
		return strconv.Itoa(cfg.Limits.CompactChars), nil
	case "limits.detailed_chars":
		return strconv.Itoa(cfg.Limits.DetailedChars), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s", key, value)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "workers.max":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid worker count: %s", value)
		}
		cfg.Workers.Max = n
	case "timeouts.unit_idle", "timeouts.unit_absolute", "timeouts.wave":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, value)
		}
		switch key {
		case "timeouts.unit_idle":
			cfg.Timeouts.UnitIdle = d
		case "timeouts.unit_absolute":
			cfg.Timeouts.UnitAbsolute = d
		case "timeouts.wave":
			cfg.Timeouts.Wave = d
		}
	case "limits.planner_cycles", "limits.iteration_multiplier", "limits.compact_chars", "limits.detailed_chars":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		switch key {
		case "limits.planner_cycles":
			cfg.Limits.PlannerCycles = n
		case "limits.iteration_multiplier":
			cfg.Limits.IterationMultiplier = n
		case "limits.compact_chars":
			cfg.Limits.CompactChars = n
		case "limits.detailed_chars":
			cfg.Limits.DetailedChars = n
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
