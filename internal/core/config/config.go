package config

import (
	"bytes"
	"fmt"
	"os"
	"recast/internal/engine/parser"
	"recast/internal/shared/util"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the configuration file name looked up in the project root.
const DefaultFile = "recast.toml"

type Config struct {
	Version       int                 `toml:"version"`
	Paths         Paths               `toml:"paths"`
	Rules         Rules               `toml:"rules"`
	Scan          Scan                `toml:"scan"`
	Languages     map[string]Language `toml:"languages"`
	Plan          Plan                `toml:"plan"`
	History       History             `toml:"history"`
	Index         Index               `toml:"index"`
	Watch         Watch               `toml:"watch"`
	Observability Observability       `toml:"observability"`
	Log           Log                 `toml:"log"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	StateDir    string `toml:"state_dir"`
}

// Rules lists the KDL or XML rule files, relative to the project root.
type Rules struct {
	Files []string `toml:"files"`
}

type Scan struct {
	Include     []string `toml:"include"`
	Exclude     []string `toml:"exclude"`
	MaxFileSize int64    `toml:"max_file_size"`
}

type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
}

type Plan struct {
	Output  string `toml:"output"`
	Format  string `toml:"format"`
	Preview bool   `toml:"preview"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Index struct {
	Enabled        bool `toml:"enabled"`
	Workers        int  `toml:"workers"`
	MergeThreshold int  `toml:"merge_threshold"`
}

type Watch struct {
	Debounce      time.Duration `toml:"debounce"`
	RatePerSecond float64       `toml:"rate_per_second"`
}

type Observability struct {
	MetricsAddress string `toml:"metrics_address"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
}

type Log struct {
	Level string `toml:"level"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LanguageOverrides converts the [languages] tables for the grammar registry.
func (c *Config) LanguageOverrides() map[string]parser.LanguageOverride {
	if len(c.Languages) == 0 {
		return nil
	}
	out := make(map[string]parser.LanguageOverride, len(c.Languages))
	for id, lang := range c.Languages {
		out[strings.ToLower(strings.TrimSpace(id))] = parser.LanguageOverride{
			Enabled:    lang.Enabled,
			Extensions: append([]string(nil), lang.Extensions...),
		}
	}
	return out
}

// IncludeSet compiles scan.include. An empty set means every file is included.
func (c *Config) IncludeSet() (*util.GlobSet, error) {
	return util.CompileGlobs(c.Scan.Include)
}

// ExcludeSet compiles scan.exclude.
func (c *Config) ExcludeSet() (*util.GlobSet, error) {
	return util.CompileGlobs(c.Scan.Exclude)
}

// Encode renders cfg back to TOML.
func (c *Config) Encode() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return buf.String(), nil
}

// WriteDefault writes a starter configuration to path unless it already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	content, err := Default().Encode()
	if err != nil {
		return err
	}
	return util.WriteStringWithDirs(path, content, 0o644)
}
