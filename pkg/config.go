package incremental

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
)

// Config represents the fpdiff configuration
type Config struct {
	configPath string
	ini        *ini.File
}

// HashConfig represents hash algorithm configuration
type HashConfig struct {
	Default string // Default hash algorithm
}

// OutputConfig represents output format configuration
type OutputConfig struct {
	Format string // human, json, yaml
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // Default verbose level (0=quiet, 1=basic, 2=detailed, 3=trace)
	Debug string // Default debug flags (comma-separated)
}

// WalkConfig controls directory traversal
type WalkConfig struct {
	Postfix      bool // visit directories after their contents
	Reproducible bool // list children sorted by name
}

// SnapshotConfig controls snapshot construction
type SnapshotConfig struct {
	IncludeEmptyDirectories bool `ini:"include_empty_directories"`
}

// FingerprintConfig selects the default sensitivity policy
type FingerprintConfig struct {
	Strategy     string
	IncludeAdded bool `ini:"include_added"`
}

// ChangesConfig limits change reporting
type ChangesConfig struct {
	MaxReported int `ini:"max_reported"` // 0 means unlimited
}

// CacheConfig controls the build cache
type CacheConfig struct {
	MaxFailures int `ini:"max_failures"` // non-fatal failures tolerated before caching is disabled
}

// LogConfig configures the optional rotating log file
type LogConfig struct {
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// AllConfig represents all configuration options
type AllConfig struct {
	Hash        *HashConfig
	Output      *OutputConfig
	Verbose     *VerboseConfig
	Walk        *WalkConfig
	Snapshot    *SnapshotConfig
	Fingerprint *FingerprintConfig
	Changes     *ChangesConfig
	Cache       *CacheConfig
	Log         *LogConfig
}

type configDefault struct {
	section, key, value string
}

var configDefaults = []configDefault{
	{"filehash", "default", "sha256"},
	{"output", "format", "human"},
	{"verbose", "level", "0"},
	{"verbose", "debug", ""},
	{"walk", "postfix", "false"},
	{"walk", "reproducible", "true"},
	{"snapshot", "include_empty_directories", "true"},
	{"fingerprint", "strategy", string(AbsolutePathStrategy)},
	{"fingerprint", "include_added", "true"},
	{"changes", "max_reported", "100"},
	{"cache", "max_failures", "3"},
	{"log", "file", ""},
	{"log", "max_size", "10"},
	{"log", "max_backups", "3"},
	{"log", "max_age", "28"},
	{"log", "compress", "false"},
}

// overrideKeys maps the short keys accepted by ApplyOverrides to their section
var overrideKeys = map[string]string{
	"default":                   "filehash",
	"format":                    "output",
	"level":                     "verbose",
	"debug":                     "verbose",
	"postfix":                   "walk",
	"reproducible":              "walk",
	"include_empty_directories": "snapshot",
	"strategy":                  "fingerprint",
	"include_added":             "fingerprint",
	"max_reported":              "changes",
	"max_failures":              "cache",
	"file":                      "log",
	"max_size":                  "log",
	"max_backups":               "log",
	"max_age":                   "log",
	"compress":                  "log",
}

// LoadConfig loads configuration from the state directory's config file,
// creating it with defaults if it does not exist
func LoadConfig(stateDir string) (*Config, error) {
	configPath := filepath.Join(stateDir, ConfigFile)

	cfg := &Config{
		configPath: configPath,
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.ini = ini.Empty()
		if err := cfg.setDefaults(); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	} else {
		iniFile, err := ini.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg.ini = iniFile
	}

	return cfg, nil
}

// DefaultConfig returns an in-memory configuration holding the defaults
func DefaultConfig() *Config {
	cfg := &Config{ini: ini.Empty()}
	if err := cfg.setDefaults(); err != nil {
		panic(fmt.Sprintf("invalid built-in config defaults: %v", err))
	}
	return cfg
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() error {
	for _, d := range configDefaults {
		section, err := c.ini.NewSection(d.section)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", d.section, err)
		}
		if _, err := section.NewKey(d.key, d.value); err != nil {
			return fmt.Errorf("failed to set default %s.%s: %w", d.section, d.key, err)
		}
	}
	return nil
}

func (c *Config) stringValue(section, key, fallback string) string {
	if c.ini.HasSection(section) && c.ini.Section(section).HasKey(key) {
		return c.ini.Section(section).Key(key).String()
	}
	return fallback
}

func (c *Config) intValue(section, key string, fallback int) int {
	if c.ini.HasSection(section) && c.ini.Section(section).HasKey(key) {
		if v, err := c.ini.Section(section).Key(key).Int(); err == nil {
			return v
		}
	}
	return fallback
}

func (c *Config) boolValue(section, key string, fallback bool) bool {
	if c.ini.HasSection(section) && c.ini.Section(section).HasKey(key) {
		if v, err := c.ini.Section(section).Key(key).Bool(); err == nil {
			return v
		}
	}
	return fallback
}

// GetHashConfig returns the hash configuration
func (c *Config) GetHashConfig() *HashConfig {
	return &HashConfig{Default: c.stringValue("filehash", "default", "sha256")}
}

// GetOutputConfig returns the output configuration
func (c *Config) GetOutputConfig() *OutputConfig {
	return &OutputConfig{Format: c.stringValue("output", "format", "human")}
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() *VerboseConfig {
	return &VerboseConfig{
		Level: c.intValue("verbose", "level", 0),
		Debug: c.stringValue("verbose", "debug", ""),
	}
}

// GetWalkConfig returns the traversal configuration
func (c *Config) GetWalkConfig() *WalkConfig {
	return &WalkConfig{
		Postfix:      c.boolValue("walk", "postfix", false),
		Reproducible: c.boolValue("walk", "reproducible", true),
	}
}

// GetSnapshotConfig returns the snapshot configuration
func (c *Config) GetSnapshotConfig() *SnapshotConfig {
	return &SnapshotConfig{
		IncludeEmptyDirectories: c.boolValue("snapshot", "include_empty_directories", true),
	}
}

// GetFingerprintConfig returns the fingerprint configuration
func (c *Config) GetFingerprintConfig() *FingerprintConfig {
	return &FingerprintConfig{
		Strategy:     c.stringValue("fingerprint", "strategy", string(AbsolutePathStrategy)),
		IncludeAdded: c.boolValue("fingerprint", "include_added", true),
	}
}

// GetChangesConfig returns the change reporting configuration
func (c *Config) GetChangesConfig() *ChangesConfig {
	return &ChangesConfig{MaxReported: c.intValue("changes", "max_reported", 100)}
}

// GetCacheConfig returns the build cache configuration
func (c *Config) GetCacheConfig() *CacheConfig {
	return &CacheConfig{MaxFailures: c.intValue("cache", "max_failures", 3)}
}

// GetLogConfig returns the log file configuration
func (c *Config) GetLogConfig() *LogConfig {
	return &LogConfig{
		File:       c.stringValue("log", "file", ""),
		MaxSize:    c.intValue("log", "max_size", 10),
		MaxBackups: c.intValue("log", "max_backups", 3),
		MaxAge:     c.intValue("log", "max_age", 28),
		Compress:   c.boolValue("log", "compress", false),
	}
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		Hash:        c.GetHashConfig(),
		Output:      c.GetOutputConfig(),
		Verbose:     c.GetVerboseConfig(),
		Walk:        c.GetWalkConfig(),
		Snapshot:    c.GetSnapshotConfig(),
		Fingerprint: c.GetFingerprintConfig(),
		Changes:     c.GetChangesConfig(),
		Cache:       c.GetCacheConfig(),
		Log:         c.GetLogConfig(),
	}
}

// Set validates and stores a value given as "section.key" or a short key
// accepted by ApplyOverrides, then saves the file
func (c *Config) Set(key, value string) error {
	section, name, err := resolveConfigKey(key)
	if err != nil {
		return err
	}
	if err := ValidateConfigValue(name, value); err != nil {
		return err
	}
	c.ini.Section(section).Key(name).SetValue(value)
	return c.Save()
}

// Values returns every configured "section.key" and its value
func (c *Config) Values() map[string]string {
	values := make(map[string]string)
	for _, section := range c.ini.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		for _, key := range section.Keys() {
			values[section.Name()+"."+key.Name()] = key.String()
		}
	}
	return values
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("config has no file to save to")
	}
	return c.ini.SaveTo(c.configPath)
}

// ApplyOverrides applies command-line overrides to the configuration
// Accepts strings like "default:sha256", "strategy:relative", "level:2", "debug:walk"
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		section, ok := overrideKeys[key]
		if !ok {
			return fmt.Errorf("unsupported override key '%s' (supported: %s)", key, strings.Join(supportedOverrideKeys(), ", "))
		}
		if err := ValidateConfigValue(key, value); err != nil {
			return err
		}
		c.ini.Section(section).Key(key).SetValue(value)
	}

	return nil
}

func resolveConfigKey(key string) (string, string, error) {
	if section, name, found := strings.Cut(key, "."); found {
		if overrideKeys[name] != section {
			return "", "", fmt.Errorf("unknown config key '%s'", key)
		}
		return section, name, nil
	}
	section, ok := overrideKeys[key]
	if !ok {
		return "", "", fmt.Errorf("unknown config key '%s'", key)
	}
	return section, key, nil
}

func supportedOverrideKeys() []string {
	keys := make([]string, 0, len(configDefaults))
	for _, d := range configDefaults {
		keys = append(keys, d.key)
	}
	return keys
}

// ValidateConfigValue validates a value for a short key
func ValidateConfigValue(key, value string) error {
	switch key {
	case "default":
		return ValidateHashAlgorithm(value)
	case "format":
		return ValidateOutputFormat(value)
	case "level":
		level, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid verbose level: %s", value)
		}
		return ValidateVerboseLevel(level)
	case "debug", "file":
		return nil
	case "strategy":
		return ValidateStrategy(value)
	case "postfix", "reproducible", "include_empty_directories", "include_added", "compress":
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid boolean for %s: %s", key, value)
		}
		return nil
	case "max_reported", "max_failures", "max_size", "max_backups", "max_age":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for %s: %s (expected a non-negative integer)", key, value)
		}
		return nil
	default:
		return fmt.Errorf("unknown config key '%s'", key)
	}
}

// ValidateHashAlgorithm validates that a hash algorithm is supported
func ValidateHashAlgorithm(algorithm string) error {
	if _, ok := HashTypeFromName(algorithm); !ok {
		return fmt.Errorf("unsupported hash algorithm: %s (supported: sha1, sha256, sha512)", algorithm)
	}
	return nil
}

// ValidateOutputFormat validates that an output format is supported
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case "human", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json, yaml)", format)
	}
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}

// ValidateStrategy validates a fingerprinting strategy name
func ValidateStrategy(name string) error {
	if _, err := StrategyByName(name); err != nil {
		return fmt.Errorf("%w (supported: absolute, relative, ignored, classpath)", err)
	}
	return nil
}
