package cmd

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ledgerd/block"
	"ledgerd/config"
	"ledgerd/coordinator"
	"ledgerd/dag"
	"ledgerd/db"
	"ledgerd/events"
	"ledgerd/exception"
	"ledgerd/execution"
	"ledgerd/logx"
	"ledgerd/mempool"
	"ledgerd/miner"
	"ledgerd/monitoring"
	"ledgerd/packer"
	"ledgerd/staking"
	"ledgerd/statestore"
	"ledgerd/synergetic"
	"ledgerd/transaction"

	mainchain "ledgerd/chain"
)

const (
	defaultGenesisPath = "config/genesis.yml"
	defaultConfigPath  = "config/config.ini"
)

var (
	genesisPath string
	configPath  string
	privKeyPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a ledgerd node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode()
	},
}

func init() {
	runCmd.Flags().StringVar(&genesisPath, "genesis", defaultGenesisPath, "path to genesis.yml")
	runCmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to config.ini")
	runCmd.Flags().StringVar(&privKeyPath, "key", "", "path to the miner's hex-encoded ed25519 private key")
	rootCmd.AddCommand(runCmd)
}

func runNode() error {
	// .env is optional; explicit environment wins
	_ = godotenv.Load()

	genesisCfg, err := config.LoadGenesisConfig(genesisPath)
	if err != nil {
		return logx.Errorf("failed to load genesis config: %v", err)
	}
	nodeCfg, err := config.LoadNodeConfig(configPath)
	if err != nil {
		return logx.Errorf("failed to load node config: %v", err)
	}
	coordCfg, err := config.LoadCoordinatorConfig(configPath)
	if err != nil {
		return logx.Errorf("failed to load coordinator config: %v", err)
	}

	monitoring.InitMetrics()

	provider, err := db.NewProvider(nodeCfg.DBBackend, nodeCfg.DataDir)
	if err != nil {
		return logx.Errorf("failed to open database: %v", err)
	}
	defer provider.Close()

	genesisAccounts, err := genesisCfg.AccountSet()
	if err != nil {
		return logx.Errorf("invalid genesis accounts: %v", err)
	}

	stateStore, err := statestore.New(provider, genesisAccounts)
	if err != nil {
		return logx.Errorf("failed to open state store: %v", err)
	}
	chainStore, err := mainchain.NewMainChain(provider)
	if err != nil {
		return logx.Errorf("failed to open main chain: %v", err)
	}

	pool := mempool.New(nodeCfg.MempoolMaxTxs, nil)
	engine := execution.NewLaneEngine(stateStore, pool)
	statusCache := transaction.NewStatusCache()
	router := events.NewRouter()

	deps := coordinator.Deps{
		Chain:   chainStore,
		State:   stateStore,
		Engine:  engine,
		TxIndex: pool,
		Packer:  packer.New(pool, coordCfg.PackerBatchSize),
		Sink:    router,
		Status:  statusCache,
		Miner:   miner.New(),
	}

	if stakes := genesisCfg.StakeTable(); len(stakes) > 0 {
		deps.Stake = staking.NewManager(stakes)
	}
	if coordCfg.EnableDAG {
		dagManager := dag.NewManager()
		deps.DAG = dagManager
		if coordCfg.EnableSynergetic {
			deps.Synergetic = synergetic.NewManager(dagManager)
		}
	}

	cfg := coordinator.Config{
		BlockPeriod:         time.Duration(coordCfg.BlockPeriodMs) * time.Millisecond,
		BlockDifficulty:     uint8(coordCfg.BlockDifficulty),
		NumLanes:            coordCfg.NumLanes,
		NumSlices:           coordCfg.NumSlices,
		Mining:              coordCfg.Mining,
		PathToAncestorLimit: coordCfg.PathToAncestorLimit,
		FastSyncThreshold:   coordCfg.FastSyncThreshold,
		ProofSearchBudget:   coordCfg.ProofSearchBudget,
	}

	if coordCfg.Mining {
		if privKeyPath == "" {
			return logx.Errorf("mining is enabled but no --key was given")
		}
		privKey, err := config.LoadEd25519PrivKey(privKeyPath)
		if err != nil {
			return logx.Errorf("failed to load private key: %v", err)
		}
		cfg.Signer = privKey
		cfg.MinerAddress = block.MinerAddress(privKey.Public().(ed25519.PublicKey))
	}

	bc := coordinator.New(cfg, deps)

	mux := http.NewServeMux()
	monitoring.RegisterMetrics(mux)
	exception.SafeGo("metrics-server", func() {
		if err := http.ListenAndServe(nodeCfg.MetricsAddr, mux); err != nil {
			logx.Error("NODE", "Metrics server stopped: ", err)
		}
	})

	// drain sealed blocks so the sink never backs up; transports subscribe
	// the same way
	sealed := router.Subscribe(64)
	exception.SafeGo("block-sink-drain", func() {
		for blk := range sealed {
			logx.Info("NODE", "Sealed block ", blk.Body.Hash.Short(), " at height ", blk.Body.Number)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	exception.SafeGoWithPanic("block-coordinator", func() {
		bc.Run(ctx)
		close(done)
	})

	logx.Info("NODE", "Node started, chain=", genesisCfg.ChainID, " mining=", coordCfg.Mining)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logx.Info("NODE", "Shutting down")
	cancel()
	<-done
	return nil
}
