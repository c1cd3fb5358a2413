package config

const (
	DefaultDBBackend   = "leveldb"
	DefaultDataDir     = "./data"
	DefaultMetricsAddr = ":9100"

	DefaultMempoolMaxTxs = 10000

	DefaultBlockPeriodMs     = 5000
	DefaultBlockDifficulty   = 12
	DefaultNumLanes          = 8
	DefaultNumSlices         = 16
	DefaultPackerBatchSize   = 1000
	DefaultPathAncestorLimit = 1000
	DefaultFastSyncThreshold = 100
	DefaultProofSearchBudget = 100
)
