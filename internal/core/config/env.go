package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: RECAST_[SECTION]_[KEY] (e.g., RECAST_LOG_LEVEL).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Paths.ProjectRoot, "RECAST_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.StateDir, "RECAST_PATHS_STATE_DIR")

	setEnvList(&cfg.Rules.Files, "RECAST_RULES_FILES")
	setEnvInt64(&cfg.Scan.MaxFileSize, "RECAST_SCAN_MAX_FILE_SIZE")

	setEnvString(&cfg.Plan.Output, "RECAST_PLAN_OUTPUT")
	setEnvString(&cfg.Plan.Format, "RECAST_PLAN_FORMAT")
	setEnvBool(&cfg.Plan.Preview, "RECAST_PLAN_PREVIEW")

	setEnvBool(&cfg.History.Enabled, "RECAST_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "RECAST_HISTORY_PATH")

	setEnvBool(&cfg.Index.Enabled, "RECAST_INDEX_ENABLED")
	setEnvInt(&cfg.Index.Workers, "RECAST_INDEX_WORKERS")

	setEnvDuration(&cfg.Watch.Debounce, "RECAST_WATCH_DEBOUNCE")

	setEnvString(&cfg.Observability.MetricsAddress, "RECAST_OBSERVABILITY_METRICS_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "RECAST_OBSERVABILITY_OTLP_ENDPOINT")

	setEnvString(&cfg.Log.Level, "RECAST_LOG_LEVEL")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Split(val, ",")
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvInt64(target *int64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
