package main

import (
	"context"
	"fmt"

	"otto/pkg/memory"
)

// defaultMemoryStore opens (or creates) the SQLite memory store at
// ~/.otto/memories.db and ensures the schema is applied. CLI commands read
// and write the same database as a running engine.
func defaultMemoryStore() (*memory.Store, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}

	db, err := openDB(paths.MemoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}

	store := memory.NewStore(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return store, nil
}

// resolveStore returns the injected store, or opens the default one.
// Commands are constructed with a nil store in production and a fake in tests.
func resolveStore(store *memory.Store) (*memory.Store, error) {
	if store != nil {
		return store, nil
	}
	return defaultMemoryStore()
}
