package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress   string  `toml:"RPCAddress"`
	DataDir      string  `toml:"DataDir"`
	NetworkName  string  `toml:"NetworkName"`
	GenesisFile  string  `toml:"GenesisFile"`
	LogFile      string  `toml:"LogFile"`
	RPCAuthToken string  `toml:"RPCAuthToken"`
	RPCRateLimit float64 `toml:"RPCRateLimit"`
	RPCRateBurst int     `toml:"RPCRateBurst"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s contains unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./nftmarket-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "nftmarket-local"
	}
	if cfg.RPCRateLimit < 0 {
		cfg.RPCRateLimit = 0
	}
	if cfg.RPCRateBurst <= 0 {
		cfg.RPCRateBurst = 20
	}
}

func validate(cfg *Config) error {
	if cfg.RPCRateLimit > 0 && cfg.RPCRateBurst <= 0 {
		return fmt.Errorf("RPCRateBurst must be positive when RPCRateLimit is set")
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:   ":8080",
		DataDir:      "./nftmarket-data",
		NetworkName:  "nftmarket-local",
		GenesisFile:  "",
		LogFile:      "",
		RPCRateLimit: 50,
		RPCRateBurst: 20,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
