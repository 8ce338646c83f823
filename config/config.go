package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPricePerByte is the storage price applied when the config file does
// not set one: 10^19 base token units per stored byte.
const DefaultPricePerByte = "10000000000000000000"

type Config struct {
	RPCAddress      string  `toml:"RPCAddress"`
	DataDir         string  `toml:"DataDir"`
	NetworkName     string  `toml:"NetworkName"`
	OperatorAccount string  `toml:"OperatorAccount"`
	PricePerByte    string  `toml:"PricePerByte"`
	Genesis         Genesis `toml:"genesis"`
}

// Genesis seeds external account balances on first start. Balances are
// decimal strings in base token units.
type Genesis struct {
	Accounts map[string]string `toml:"accounts"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "lot-local"
	}
	if strings.TrimSpace(cfg.PricePerByte) == "" {
		cfg.PricePerByte = DefaultPricePerByte
	}
	if cfg.Genesis.Accounts == nil {
		cfg.Genesis.Accounts = map[string]string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:   ":8080",
		DataDir:      "./lot-data",
		NetworkName:  "lot-local",
		PricePerByte: DefaultPricePerByte,
		Genesis:      Genesis{Accounts: map[string]string{}},
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
