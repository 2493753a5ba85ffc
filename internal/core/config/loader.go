package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalize(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateScan(&cfg); err != nil {
		return nil, err
	}
	if err := validateLanguages(&cfg); err != nil {
		return nil, err
	}
	if err := validatePlan(&cfg); err != nil {
		return nil, err
	}
	if err := validateIndex(&cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(&cfg); err != nil {
		return nil, err
	}
	if err := validateLog(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = ".recast"
	}
	if len(cfg.Rules.Files) == 0 {
		cfg.Rules.Files = []string{"rules.kdl"}
	}

	if len(cfg.Scan.Exclude) == 0 {
		cfg.Scan.Exclude = []string{".git/**", "node_modules/**", "vendor/**", ".recast/**"}
	}
	if cfg.Scan.MaxFileSize <= 0 {
		cfg.Scan.MaxFileSize = 1 << 20
	}

	if strings.TrimSpace(cfg.Plan.Format) == "" {
		cfg.Plan.Format = "json"
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "history.db"
	}

	if cfg.Index.Workers <= 0 {
		cfg.Index.Workers = 4
	}
	if cfg.Index.MergeThreshold <= 0 {
		cfg.Index.MergeThreshold = 256
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RatePerSecond <= 0 {
		cfg.Watch.RatePerSecond = 2
	}

	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
}

func normalize(cfg *Config) {
	cfg.Plan.Format = strings.ToLower(strings.TrimSpace(cfg.Plan.Format))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Plan.Output = strings.TrimSpace(cfg.Plan.Output)
	cfg.Observability.MetricsAddress = strings.TrimSpace(cfg.Observability.MetricsAddress)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)

	files := cfg.Rules.Files[:0]
	for _, f := range cfg.Rules.Files {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	cfg.Rules.Files = files
}
