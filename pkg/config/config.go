package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "REAPER_CONFIG"

// ErrUnknownFormat is returned for config files with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown config format")

// Config holds all configuration options for reaper.
type Config struct {
	Paths       PathsConfig    `koanf:"paths" yaml:"paths" toml:"paths" json:"paths"`
	EntryPoints EntryConfig    `koanf:"entry_points" yaml:"entry_points" toml:"entry_points" json:"entry_points"`
	Rules       RulesConfig    `koanf:"rules" yaml:"rules" toml:"rules" json:"rules"`
	Scoring     ScoringConfig  `koanf:"scoring" yaml:"scoring" toml:"scoring" json:"scoring"`
	Analysis    AnalysisConfig `koanf:"analysis" yaml:"analysis" toml:"analysis" json:"analysis"`
	Cache       CacheConfig    `koanf:"cache" yaml:"cache" toml:"cache" json:"cache"`
	OutputDir   string         `koanf:"output_dir" yaml:"output_dir" toml:"output_dir" json:"output_dir"`

	// path is the file the config was loaded from, empty for defaults.
	path string
}

// PathsConfig selects the files to scan.
type PathsConfig struct {
	// Include lists directories or files relative to the project root.
	Include []string `koanf:"include" yaml:"include" toml:"include" json:"include"`
	// Exclude lists gitignore-style patterns relative to the project root.
	Exclude   []string `koanf:"exclude" yaml:"exclude" toml:"exclude" json:"exclude"`
	Gitignore bool     `koanf:"gitignore" yaml:"gitignore" toml:"gitignore" json:"gitignore"`
}

// EntryConfig defines where reachability starts.
type EntryConfig struct {
	Files   []string `koanf:"files" yaml:"files" toml:"files" json:"files"`
	Symbols []string `koanf:"symbols" yaml:"symbols" toml:"symbols" json:"symbols"`
}

// RulesConfig protects symbols and files from deletion.
type RulesConfig struct {
	KeepPatterns []string `koanf:"keep_patterns" yaml:"keep_patterns" toml:"keep_patterns" json:"keep_patterns"`
	KeepGlobs    []string `koanf:"keep_globs" yaml:"keep_globs" toml:"keep_globs" json:"keep_globs"`
}

// ScoringConfig controls classification.
type ScoringConfig struct {
	DeleteThreshold int `koanf:"delete_threshold" yaml:"delete_threshold" toml:"delete_threshold" json:"delete_threshold"`
}

// AnalysisConfig controls extraction.
type AnalysisConfig struct {
	Attribution string `koanf:"attribution" yaml:"attribution" toml:"attribution" json:"attribution"` // file, scope
	Resolution  string `koanf:"resolution" yaml:"resolution" toml:"resolution" json:"resolution"`    // permissive, strict
	Workers     int    `koanf:"workers" yaml:"workers" toml:"workers" json:"workers"`
	MaxFileSize int64  `koanf:"max_file_size" yaml:"max_file_size" toml:"max_file_size" json:"max_file_size"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled" toml:"enabled" json:"enabled"`
	Dir     string `koanf:"dir" yaml:"dir" toml:"dir" json:"dir"`
	TTL     int    `koanf:"ttl" yaml:"ttl" toml:"ttl" json:"ttl"` // TTL in hours
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Include: []string{"src/**"},
			Exclude: []string{"vendor/**"},
		},
		EntryPoints: EntryConfig{
			Files:   []string{},
			Symbols: []string{},
		},
		Rules: RulesConfig{
			KeepPatterns: []string{},
			KeepGlobs:    []string{},
		},
		Scoring: ScoringConfig{
			DeleteThreshold: 5,
		},
		Analysis: AnalysisConfig{
			Attribution: "file",
			Resolution:  "permissive",
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     ".reaper/cache",
			TTL:     24,
		},
		OutputDir: "out",
	}
}

// parserFor picks the koanf parser from a file extension.
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load loads configuration from a file, layering it over the defaults.
func Load(path string) (*Config, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// configNames are searched in order in the working directory.
var configNames = []string{
	"reaper.yaml",
	"reaper.yml",
	"reaper.toml",
	"reaper.json",
	".reaper.yaml",
	".reaper.yml",
	".reaper.toml",
	".reaper.json",
}

// Find returns the config file to use: explicit wins, then $REAPER_CONFIG,
// then the first standard name present in dir. It returns "" when none exists.
func Find(explicit, dir string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// LoadOrDefault loads the config chosen by Find, or the defaults when no
// file is found. An explicitly named file that fails to load is an error.
func LoadOrDefault(explicit, dir string) (*Config, error) {
	path := Find(explicit, dir)
	if path == "" {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Path returns the file the config was loaded from, or "".
func (c *Config) Path() string {
	return c.path
}

// BaseDir is the directory relative paths in the config refer to: the
// config file's directory, or "." for defaults.
func (c *Config) BaseDir() string {
	if c.path == "" {
		return "."
	}
	abs, err := filepath.Abs(c.path)
	if err != nil {
		return filepath.Dir(c.path)
	}
	return filepath.Dir(abs)
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Analysis.Attribution) {
	case "", "file", "scope":
	default:
		return fmt.Errorf("analysis.attribution: unknown value %q (want file or scope)", c.Analysis.Attribution)
	}
	switch strings.ToLower(c.Analysis.Resolution) {
	case "", "permissive", "strict":
	default:
		return fmt.Errorf("analysis.resolution: unknown value %q (want permissive or strict)", c.Analysis.Resolution)
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers: must not be negative")
	}
	if c.Analysis.MaxFileSize < 0 {
		return fmt.Errorf("analysis.max_file_size: must not be negative")
	}
	return nil
}
