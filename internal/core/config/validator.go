package config

import (
	"fmt"
	"log/slog"
	"recast/internal/engine/parser"
	"recast/internal/engine/plan"
	"strings"
)

// Validate runs every check and collects all failures instead of stopping at
// the first one.
func Validate(cfg *Config) []error {
	checks := []func(*Config) error{
		validateVersion,
		validateScan,
		validateLanguages,
		validatePlan,
		validateIndex,
		validateWatch,
		validateLog,
	}
	var errs []error
	for _, check := range checks {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateScan(cfg *Config) error {
	if _, err := cfg.IncludeSet(); err != nil {
		return fmt.Errorf("scan.include: %w", err)
	}
	if _, err := cfg.ExcludeSet(); err != nil {
		return fmt.Errorf("scan.exclude: %w", err)
	}
	if cfg.Scan.MaxFileSize < 0 {
		return fmt.Errorf("scan.max_file_size must be >= 0, got %d", cfg.Scan.MaxFileSize)
	}
	return nil
}

func validateLanguages(cfg *Config) error {
	if _, err := parser.BuildLanguageRegistry(cfg.LanguageOverrides()); err != nil {
		return fmt.Errorf("languages: %w", err)
	}
	return nil
}

func validatePlan(cfg *Config) error {
	switch plan.Format(cfg.Plan.Format) {
	case plan.FormatJSON, plan.FormatMsgpack:
		return nil
	default:
		return fmt.Errorf("plan.format must be one of: json, msgpack; got %q", cfg.Plan.Format)
	}
}

func validateIndex(cfg *Config) error {
	if cfg.Index.Workers < 1 {
		return fmt.Errorf("index.workers must be >= 1, got %d", cfg.Index.Workers)
	}
	if cfg.Index.MergeThreshold < 1 {
		return fmt.Errorf("index.merge_threshold must be >= 1, got %d", cfg.Index.MergeThreshold)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be > 0")
	}
	if cfg.Watch.RatePerSecond <= 0 {
		return fmt.Errorf("watch.rate_per_second must be > 0")
	}
	return nil
}

func validateLog(cfg *Config) error {
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps log.level onto a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", level)
	}
}
