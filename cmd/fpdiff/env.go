package main

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	incremental "github.com/Thereisnospon/gradle/pkg"
	"github.com/spf13/viper"
)

const (
	envPrefix = "FPDIFF"

	stateDirFlagName = "state-dir"
	verboseFlagName  = "verbose"
	debugFlagName    = "debug"
	formatFlagName   = "format"
	optionFlagName   = "option"
	includeFlagName  = "include"
	excludeFlagName  = "exclude"

	includeConfigKey = "patterns.include"
	excludeConfigKey = "patterns.exclude"
)

func init() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(stateDirFlagName, incremental.StateDir)
	viper.SetDefault(includeConfigKey, []string{})
	viper.SetDefault(excludeConfigKey, []string{})
}

// session is the state shared by one command invocation
type session struct {
	stateDir  string
	cfg       *incremental.Config
	algorithm *incremental.HashAlgorithm
	patterns  *incremental.PatternFilter
	stopFlag  *atomic.Bool
	shutdown  <-chan struct{}
	cleanup   func()
}

// openSession loads the state directory's config, layers flag and
// environment overrides on top and configures logging
func openSession() (*session, error) {
	stateDir := strings.TrimSpace(viper.GetString(stateDirFlagName))
	if stateDir == "" {
		stateDir = incremental.StateDir
	}

	cfg, err := incremental.LoadConfig(stateDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(flagOverrides()); err != nil {
		return nil, err
	}

	verbose := cfg.GetVerboseConfig()
	incremental.SetVerboseLevel(verbose.Level)
	incremental.SetDebugFlags(verbose.Debug)
	incremental.ConfigureLogFile(cfg.GetLogConfig())

	algorithm, err := incremental.GetHashAlgorithm(cfg.GetHashConfig().Default)
	if err != nil {
		return nil, err
	}

	patterns, err := loadPatterns(stateDir)
	if err != nil {
		return nil, err
	}

	stopFlag := &atomic.Bool{}
	shutdown, cleanup := setupSignalHandler(stopFlag)

	return &session{
		stateDir:  stateDir,
		cfg:       cfg,
		algorithm: algorithm,
		patterns:  patterns,
		stopFlag:  stopFlag,
		shutdown:  shutdown,
		cleanup:   cleanup,
	}, nil
}

// Close stops signal handling and closes the log file
func (s *session) Close() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
	incremental.CloseLogFile()
}

// flagOverrides turns the root flags that were set into "key:value" overrides
func flagOverrides() []string {
	overrides := append([]string(nil), optionOverrides...)
	if viper.IsSet(verboseFlagName) {
		overrides = append(overrides, "level:"+viper.GetString(verboseFlagName))
	}
	if viper.IsSet(debugFlagName) {
		overrides = append(overrides, "debug:"+viper.GetString(debugFlagName))
	}
	if viper.IsSet(formatFlagName) {
		overrides = append(overrides, "format:"+viper.GetString(formatFlagName))
	}
	return overrides
}

// loadPatterns reads the state directory's pattern file and adds the
// --include and --exclude patterns. The state directory itself is always
// excluded.
func loadPatterns(stateDir string) (*incremental.PatternFilter, error) {
	patterns, err := incremental.LoadPatternFile(filepath.Join(stateDir, incremental.PatternFile))
	if err != nil {
		return nil, err
	}
	for _, p := range viper.GetStringSlice(includeConfigKey) {
		if err := patterns.AddInclude(p); err != nil {
			return nil, err
		}
	}
	for _, p := range viper.GetStringSlice(excludeConfigKey) {
		if err := patterns.AddExclude(p); err != nil {
			return nil, err
		}
	}
	if err := patterns.AddExclude("(^|/)" + regexp.QuoteMeta(filepath.Base(stateDir)) + "/"); err != nil {
		return nil, fmt.Errorf("failed to exclude state directory: %w", err)
	}
	return patterns, nil
}

func (s *session) format() string {
	return strings.ToLower(s.cfg.GetOutputConfig().Format)
}

// fingerprinter hashes files through the state directory's file hash cache
func (s *session) fingerprinter() (*incremental.FileCollectionFingerprinter, error) {
	hashes, err := incremental.NewFilePersistentCache[incremental.FileHashEntry](filepath.Join(s.stateDir, incremental.FileHashesDir))
	if err != nil {
		return nil, err
	}
	hasher := incremental.NewCachingFileHasher(s.algorithm, hashes)
	snapshotter := incremental.NewFileSystemSnapshotter(s.algorithm, hasher, incremental.UniqueInterner{}).
		Configure(s.cfg.GetWalkConfig(), s.cfg.GetSnapshotConfig())
	return incremental.NewFileCollectionFingerprinter(snapshotter, s.patterns), nil
}

// fingerprintStore holds the fingerprints recorded by previous diff runs
func (s *session) fingerprintStore() (*incremental.FilePersistentCache[*incremental.FileCollectionFingerprint], error) {
	return incremental.NewFilePersistentCache[*incremental.FileCollectionFingerprint](filepath.Join(s.stateDir, incremental.FingerprintsDir))
}

// strategy resolves a --strategy value, falling back to the configured one
func (s *session) strategy(name string) (incremental.FingerprintingStrategy, error) {
	if strings.TrimSpace(name) == "" {
		name = s.cfg.GetFingerprintConfig().Strategy
	}
	return incremental.StrategyByName(name)
}
