package incremental

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	tempDir := t.TempDir()

	// Load config (should create default)
	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	allConfig := config.GetAllConfig()
	if allConfig.Hash.Default != "sha256" {
		t.Errorf("Expected default hash algorithm 'sha256', got '%s'", allConfig.Hash.Default)
	}
	if allConfig.Fingerprint.Strategy != "absolute" {
		t.Errorf("Expected default strategy 'absolute', got '%s'", allConfig.Fingerprint.Strategy)
	}
	if !allConfig.Fingerprint.IncludeAdded {
		t.Error("Expected added files to be reported by default")
	}
	if allConfig.Changes.MaxReported != 100 {
		t.Errorf("Expected max_reported 100, got %d", allConfig.Changes.MaxReported)
	}
	if !allConfig.Walk.Reproducible || allConfig.Walk.Postfix {
		t.Errorf("Unexpected walk defaults: %+v", allConfig.Walk)
	}
	if !allConfig.Snapshot.IncludeEmptyDirectories {
		t.Error("Expected empty directories to be kept by default")
	}
	if allConfig.Cache.MaxFailures != 3 {
		t.Errorf("Expected max_failures 3, got %d", allConfig.Cache.MaxFailures)
	}
	if allConfig.Log.File != "" || allConfig.Log.MaxSize != 10 {
		t.Errorf("Unexpected log defaults: %+v", allConfig.Log)
	}

	// Verify config file was created
	configPath := filepath.Join(tempDir, "config")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
}

func TestConfigOverrides(t *testing.T) {
	tempDir := t.TempDir()

	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	err = config.ApplyOverrides([]string{
		"default:sha1",
		"format:json",
		"level:2",
		"debug:walk,compare",
		"strategy:classpath",
		"max_reported:0",
	})
	if err != nil {
		t.Fatalf("Failed to apply overrides: %v", err)
	}

	allConfig := config.GetAllConfig()

	if allConfig.Hash.Default != "sha1" {
		t.Errorf("Expected hash algorithm 'sha1' after override, got '%s'", allConfig.Hash.Default)
	}
	if allConfig.Output.Format != "json" {
		t.Errorf("Expected output format 'json' after override, got '%s'", allConfig.Output.Format)
	}
	if allConfig.Verbose.Level != 2 {
		t.Errorf("Expected verbose level 2 after override, got %d", allConfig.Verbose.Level)
	}
	if allConfig.Verbose.Debug != "walk,compare" {
		t.Errorf("Expected debug flags 'walk,compare' after override, got '%s'", allConfig.Verbose.Debug)
	}
	if allConfig.Fingerprint.Strategy != "classpath" {
		t.Errorf("Expected strategy 'classpath' after override, got '%s'", allConfig.Fingerprint.Strategy)
	}
	if allConfig.Changes.MaxReported != 0 {
		t.Errorf("Expected max_reported 0 after override, got %d", allConfig.Changes.MaxReported)
	}

	// Overrides are not persisted
	reloaded, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if reloaded.GetHashConfig().Default != "sha256" {
		t.Errorf("Override was persisted: %s", reloaded.GetHashConfig().Default)
	}
}

func TestConfigInvalidOverrides(t *testing.T) {
	config := DefaultConfig()

	invalid := []string{
		"default",
		"default:md5",
		"format:xml",
		"level:4",
		"strategy:name-only",
		"postfix:sometimes",
		"max_reported:-1",
		"unknown:value",
	}
	for _, override := range invalid {
		if err := config.ApplyOverrides([]string{override}); err == nil {
			t.Errorf("Expected override '%s' to be rejected", override)
		}
	}
}

func TestConfigSet(t *testing.T) {
	tempDir := t.TempDir()

	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if err := config.Set("walk.postfix", "true"); err != nil {
		t.Fatalf("Failed to set walk.postfix: %v", err)
	}
	if err := config.Set("max_failures", "5"); err != nil {
		t.Fatalf("Failed to set max_failures: %v", err)
	}
	if err := config.Set("output.max_failures", "5"); err == nil {
		t.Error("Expected key in the wrong section to be rejected")
	}
	if err := config.Set("format", "xml"); err == nil {
		t.Error("Expected invalid format to be rejected")
	}

	reloaded, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if !reloaded.GetWalkConfig().Postfix {
		t.Error("walk.postfix was not saved")
	}
	values := reloaded.Values()
	if values["cache.max_failures"] != "5" {
		t.Errorf("Expected cache.max_failures '5', got '%s'", values["cache.max_failures"])
	}
	if values["output.format"] != "human" {
		t.Errorf("Expected output.format 'human', got '%s'", values["output.format"])
	}
}

func TestDefaultConfigCannotSave(t *testing.T) {
	if err := DefaultConfig().Save(); err == nil {
		t.Error("Expected saving an in-memory config to fail")
	}
}

func TestHashAlgorithmValidation(t *testing.T) {
	testCases := []struct {
		algorithm string
		valid     bool
	}{
		{"sha1", true},
		{"sha256", true},
		{"sha512", true},
		{"md5", false},
		{"", false},
	}

	for _, tc := range testCases {
		err := ValidateHashAlgorithm(tc.algorithm)
		if tc.valid && err != nil {
			t.Errorf("Expected '%s' to be valid, got error: %v", tc.algorithm, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("Expected '%s' to be invalid", tc.algorithm)
		}
	}
}

func TestStrategyValidation(t *testing.T) {
	for _, name := range []string{"absolute", "relative", "ignored", "classpath", "Classpath"} {
		if err := ValidateStrategy(name); err != nil {
			t.Errorf("Expected '%s' to be valid, got error: %v", name, err)
		}
	}
	if err := ValidateStrategy("name-only"); err == nil {
		t.Error("Expected 'name-only' to be invalid")
	}
}
