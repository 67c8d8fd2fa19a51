package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"xcombat.dev/internal/persistence/indexdb"
)

// openRuntimeIndex opens the optional read-model. It never affects the
// simulation; a nil index disables indexing.
func openRuntimeIndex(worldDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("XC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported XC_INDEX_BACKEND: %s", backend)
	}
}
