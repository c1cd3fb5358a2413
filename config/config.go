package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"ledgerd/logx"
)

// LoadGenesisConfig reads and parses the genesis.yml file
func LoadGenesisConfig(path string) (*GenesisConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, err
	}
	logx.Info("CONFIG", "Loaded genesis config: chain=", cfgFile.Config.ChainID,
		" accounts=", len(cfgFile.Config.Accounts), " stakes=", len(cfgFile.Config.Stakes))
	return &cfgFile.Config, nil
}

// LoadEd25519PrivKey loads an Ed25519 private key from a file (expects hex encoding)
func LoadEd25519PrivKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, logx.Errorf("invalid private key length %d in %s", len(key), path)
	}
	return ed25519.PrivateKey(key), nil
}

// NodeConfig holds the node-wide tunables from the [node] ini section.
type NodeConfig struct {
	DataDir       string `ini:"data_dir"`
	DBBackend     string `ini:"db_backend"`
	MetricsAddr   string `ini:"metrics_addr"`
	MempoolMaxTxs int    `ini:"mempool_max_txs"`
}

// CoordinatorConfig holds the [coordinator] ini section.
type CoordinatorConfig struct {
	BlockPeriodMs       int    `ini:"block_period_ms"`
	BlockDifficulty     uint   `ini:"block_difficulty"`
	NumLanes            uint64 `ini:"num_lanes"`
	NumSlices           uint64 `ini:"num_slices"`
	Mining              bool   `ini:"mining"`
	PackerBatchSize     int    `ini:"packer_batch_size"`
	PathToAncestorLimit uint64 `ini:"path_to_ancestor_limit"`
	FastSyncThreshold   int    `ini:"fast_sync_threshold"`
	ProofSearchBudget   uint64 `ini:"proof_search_budget"`
	EnableDAG           bool   `ini:"enable_dag"`
	EnableSynergetic    bool   `ini:"enable_synergetic"`
}

// LoadNodeConfig reads the [node] section from an .ini file
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	nodeCfg := &NodeConfig{}
	if err := cfg.Section("node").MapTo(nodeCfg); err != nil {
		return nil, err
	}
	nodeCfg.applyDefaults()
	return nodeCfg, nil
}

// LoadCoordinatorConfig reads the [coordinator] section from an .ini file
func LoadCoordinatorConfig(path string) (*CoordinatorConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	coordCfg := &CoordinatorConfig{}
	if err := cfg.Section("coordinator").MapTo(coordCfg); err != nil {
		return nil, err
	}
	coordCfg.applyDefaults()
	return coordCfg, nil
}

func (c *NodeConfig) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.DBBackend == "" {
		c.DBBackend = DefaultDBBackend
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if c.MempoolMaxTxs == 0 {
		c.MempoolMaxTxs = DefaultMempoolMaxTxs
	}
}

func (c *CoordinatorConfig) applyDefaults() {
	if c.BlockPeriodMs == 0 {
		c.BlockPeriodMs = DefaultBlockPeriodMs
	}
	if c.BlockDifficulty == 0 {
		c.BlockDifficulty = DefaultBlockDifficulty
	}
	if c.NumLanes == 0 {
		c.NumLanes = DefaultNumLanes
	}
	if c.NumSlices == 0 {
		c.NumSlices = DefaultNumSlices
	}
	if c.PackerBatchSize == 0 {
		c.PackerBatchSize = DefaultPackerBatchSize
	}
	if c.PathToAncestorLimit == 0 {
		c.PathToAncestorLimit = DefaultPathAncestorLimit
	}
	if c.FastSyncThreshold == 0 {
		c.FastSyncThreshold = DefaultFastSyncThreshold
	}
	if c.ProofSearchBudget == 0 {
		c.ProofSearchBudget = DefaultProofSearchBudget
	}
}
