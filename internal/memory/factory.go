// File: internal/memory/factory.go
package memory

import (
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/internal/config"
)

// New selects the Store implementation from configuration: SQLite-backed
// when a database path is set, otherwise process-local.
func New(cfg config.MemoryConfig, logger *zap.Logger) (Store, error) {
	if cfg.SQLitePath != "" {
		return NewSQLiteStore(cfg, logger)
	}
	return NewInMemoryStore(cfg, logger), nil
}
