package db

import (
	"fmt"
	"path/filepath"
)

const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// NewProvider opens the configured backend under the data directory.
func NewProvider(backend, dataDir string) (DatabaseProvider, error) {
	switch backend {
	case BackendLevelDB, "":
		return NewLevelDBProvider(filepath.Join(dataDir, "leveldb"))
	case BackendBolt:
		return NewBoltProvider(filepath.Join(dataDir, "ledgerd.db"))
	case BackendMemory:
		return NewMemoryProvider(), nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", backend)
	}
}
