package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ledgerd/block"
	"ledgerd/logx"
)

var initDir string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a node identity and sample configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return initNode()
	},
}

func init() {
	initCmd.Flags().StringVar(&initDir, "dir", "config", "directory to write the generated files into")
	rootCmd.AddCommand(initCmd)
}

func initNode() error {
	if err := os.MkdirAll(initDir, 0o755); err != nil {
		return logx.Errorf("failed to create config directory: %v", err)
	}

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return logx.Errorf("failed to generate keypair: %v", err)
	}

	keyPath := filepath.Join(initDir, "node.key")
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(privKey)), 0o600); err != nil {
		return logx.Errorf("failed to write private key: %v", err)
	}

	address := block.MinerAddress(pubKey)

	genesis := fmt.Sprintf(`config:
  chain_id: ledgerd-local
  accounts:
    - address: %s
      balance: "1000000000"
  stakes:
    - address: %s
      amount: 100
`, address, address)
	if err := os.WriteFile(filepath.Join(initDir, "genesis.yml"), []byte(genesis), 0o644); err != nil {
		return logx.Errorf("failed to write genesis.yml: %v", err)
	}

	nodeIni := `[node]
data_dir = ./data
db_backend = leveldb
metrics_addr = :9100

[coordinator]
block_period_ms = 5000
block_difficulty = 12
num_lanes = 8
num_slices = 16
mining = true
`
	if err := os.WriteFile(filepath.Join(initDir, "config.ini"), []byte(nodeIni), 0o644); err != nil {
		return logx.Errorf("failed to write config.ini: %v", err)
	}

	logx.Info("CMD", "Generated node identity ", address, " in ", initDir)
	fmt.Println("node address:", address)
	return nil
}
