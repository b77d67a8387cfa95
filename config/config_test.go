package config

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateCreatesAndReloadsConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CHATKIT_DATA_DIR", tempDir)

	firstCfg, firstPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("first LoadOrCreate failed: %v", err)
	}
	if firstCfg.DeviceID == "" {
		t.Fatalf("expected non-empty device ID")
	}
	if firstCfg.APIBaseURL != DefaultAPIBaseURL {
		t.Fatalf("expected default API base URL %q, got %q", DefaultAPIBaseURL, firstCfg.APIBaseURL)
	}
	if firstCfg.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d, got %d", DefaultPageSize, firstCfg.PageSize)
	}

	expectedConfigPath := filepath.Join(tempDir, "config.json")
	if firstPath != expectedConfigPath {
		t.Fatalf("expected config path %q, got %q", expectedConfigPath, firstPath)
	}

	secondCfg, secondPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}

	if secondPath != firstPath {
		t.Fatalf("expected config path to be stable, got %q then %q", firstPath, secondPath)
	}
	if secondCfg.DeviceID != firstCfg.DeviceID {
		t.Fatalf("expected stable device ID, got %q then %q", firstCfg.DeviceID, secondCfg.DeviceID)
	}
	if secondCfg.PrivateKeyPath != firstCfg.PrivateKeyPath {
		t.Fatalf("expected stable key path, got %q then %q", firstCfg.PrivateKeyPath, secondCfg.PrivateKeyPath)
	}
}

func TestLoadOrCreateFillsMissingFields(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CHATKIT_DATA_DIR", tempDir)

	cfgPath := filepath.Join(tempDir, "config.json")
	if err := EnsureDataDirectories(tempDir); err != nil {
		t.Fatalf("EnsureDataDirectories failed: %v", err)
	}

	partial := &ClientConfig{
		DeviceID:   "legacy-device",
		DeviceName: "Legacy",
	}
	if err := Save(cfgPath, partial); err != nil {
		t.Fatalf("Save partial config failed: %v", err)
	}

	cfg, _, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg.DeviceID != "legacy-device" {
		t.Fatalf("expected existing device ID retained, got %q", cfg.DeviceID)
	}
	if cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Fatalf("expected API base URL filled, got %q", cfg.APIBaseURL)
	}
	if cfg.ChannelURL != DefaultChannelURL {
		t.Fatalf("expected channel URL filled, got %q", cfg.ChannelURL)
	}
	if cfg.PrivateKeyPath == "" || cfg.PublicKeyPath == "" {
		t.Fatalf("expected key paths filled, got %q and %q", cfg.PrivateKeyPath, cfg.PublicKeyPath)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Fatalf("expected page size filled, got %d", cfg.PageSize)
	}
}
