package config

import (
	"fmt"
	"math/big"
	"strings"
)

// Validate rejects configurations that cannot produce a working daemon.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must be set")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must be set")
	}
	if _, err := c.Price(); err != nil {
		return err
	}
	for account, balance := range c.Genesis.Accounts {
		if strings.TrimSpace(account) == "" {
			return fmt.Errorf("config: genesis account id must not be empty")
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(balance), 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("config: invalid genesis balance %q for %s", balance, account)
		}
	}
	return nil
}

// Price parses the configured storage price per byte.
func (c *Config) Price() (*big.Int, error) {
	price, ok := new(big.Int).SetString(strings.TrimSpace(c.PricePerByte), 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("config: PricePerByte must be a positive integer, got %q", c.PricePerByte)
	}
	return price, nil
}

// GenesisBalances parses the genesis account seeds into token amounts.
func (c *Config) GenesisBalances() (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(c.Genesis.Accounts))
	for account, balance := range c.Genesis.Accounts {
		amount, ok := new(big.Int).SetString(strings.TrimSpace(balance), 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("config: invalid genesis balance %q for %s", balance, account)
		}
		out[strings.TrimSpace(account)] = amount
	}
	return out, nil
}
