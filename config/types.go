package config

import (
	"fmt"

	"github.com/holiman/uint256"

	"ledgerd/types"
)

// GenesisAccount seeds one account of the genesis state. Balance is a
// decimal string so yaml round-trips arbitrary precision.
type GenesisAccount struct {
	Address string `yaml:"address"`
	Balance string `yaml:"balance"`
}

// GenesisStake registers one validator's consensus stake.
type GenesisStake struct {
	Address string `yaml:"address"`
	Amount  uint64 `yaml:"amount"`
}

// GenesisConfig holds the configuration from genesis.yml
type GenesisConfig struct {
	ChainID  string           `yaml:"chain_id"`
	Accounts []GenesisAccount `yaml:"accounts"`
	Stakes   []GenesisStake   `yaml:"stakes"`
}

// ConfigFile is the top-level structure for genesis.yml
type ConfigFile struct {
	Config GenesisConfig `yaml:"config"`
}

// AccountSet parses the genesis accounts into ledger state entries.
func (c *GenesisConfig) AccountSet() ([]*types.Account, error) {
	accounts := make([]*types.Account, 0, len(c.Accounts))
	for _, entry := range c.Accounts {
		balance, err := uint256.FromDecimal(entry.Balance)
		if err != nil {
			return nil, fmt.Errorf("invalid genesis balance for %s: %w", entry.Address, err)
		}
		accounts = append(accounts, &types.Account{Address: entry.Address, Balance: balance})
	}
	return accounts, nil
}

// StakeTable returns the genesis stakes keyed by validator address.
func (c *GenesisConfig) StakeTable() map[string]uint64 {
	stakes := make(map[string]uint64, len(c.Stakes))
	for _, entry := range c.Stakes {
		stakes[entry.Address] = entry.Amount
	}
	return stakes
}
