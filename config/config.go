package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "chatkit"
	// DefaultAPIBaseURL is used when no backend override exists.
	DefaultAPIBaseURL = "https://api.chatkit.local"
	// DefaultChannelURL is the realtime endpoint used without an override.
	DefaultChannelURL = "wss://api.chatkit.local/realtime"
	// DefaultPageSize is the message page size used without an override.
	DefaultPageSize = 50
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// ClientConfig contains persistent local-device settings.
type ClientConfig struct {
	DeviceID       string `json:"device_id"`
	DeviceName     string `json:"device_name"`
	APIBaseURL     string `json:"api_base_url"`
	ChannelURL     string `json:"channel_url"`
	PageSize       int    `json:"page_size"`
	PrivateKeyPath string `json:"private_key_path"`
	PublicKeyPath  string `json:"public_key_path"`
	KeyFingerprint string `json:"key_fingerprint"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If CHATKIT_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("CHATKIT_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// EnsureDataDirectories creates the app data directory layout if needed.
func EnsureDataDirectories(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "keys"),
		filepath.Join(dataDir, "media"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	return nil
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*ClientConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ClientConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *ClientConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures directories and config exist, then returns both.
func LoadOrCreate() (*ClientConfig, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", err
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = defaultConfig(dataDir)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}

		return cfg, cfgPath, nil
	}

	if normalizeDefaults(cfg, dataDir) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	return cfg, cfgPath, nil
}

func defaultConfig(dataDir string) *ClientConfig {
	keysDir := filepath.Join(dataDir, "keys")
	return &ClientConfig{
		DeviceID:       uuid.NewString(),
		DeviceName:     defaultDeviceName(),
		APIBaseURL:     DefaultAPIBaseURL,
		ChannelURL:     DefaultChannelURL,
		PageSize:       DefaultPageSize,
		PrivateKeyPath: filepath.Join(keysDir, "curve25519_private.pem"),
		PublicKeyPath:  filepath.Join(keysDir, "curve25519_public.pem"),
		KeyFingerprint: "",
	}
}

func defaultDeviceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "Chatkit Device"
}

func normalizeDefaults(cfg *ClientConfig, dataDir string) bool {
	updated := false
	keysDir := filepath.Join(dataDir, "keys")

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		updated = true
	}

	if cfg.DeviceName == "" {
		cfg.DeviceName = defaultDeviceName()
		updated = true
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
		updated = true
	}

	if cfg.ChannelURL == "" {
		cfg.ChannelURL = DefaultChannelURL
		updated = true
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
		updated = true
	}

	if cfg.PrivateKeyPath == "" {
		cfg.PrivateKeyPath = filepath.Join(keysDir, "curve25519_private.pem")
		updated = true
	}

	if cfg.PublicKeyPath == "" {
		cfg.PublicKeyPath = filepath.Join(keysDir, "curve25519_public.pem")
		updated = true
	}

	return updated
}
