package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"swapclear/native/settlement"
)

// Config is the process configuration for the settlement ledger.
type Config struct {
	DataDir      string `toml:"DataDir"`
	Env          string `toml:"Env"`
	FeePips      uint32 `toml:"FeePips"`
	FeeCollector string `toml:"FeeCollector"`
}

const defaultDataDir = "./swapclear-data"

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
		return nil, fmt.Errorf("config file %s has unknown keys: %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	return cfg, nil
}

// Validate checks the semantic constraints the ledger enforces at runtime.
func (c *Config) Validate() error {
	fees := c.Fees()
	if err := fees.Validate(); err != nil {
		return err
	}
	if strings.ContainsRune(c.FeeCollector, '/') {
		return fmt.Errorf("config: fee collector %q must not contain '/'", c.FeeCollector)
	}
	return nil
}

// Fees returns the fee configuration carried by this file.
func (c *Config) Fees() settlement.FeesConfig {
	return settlement.FeesConfig{
		Fee:          settlement.Pips(c.FeePips),
		FeeCollector: strings.TrimSpace(c.FeeCollector),
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{DataDir: defaultDataDir}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
