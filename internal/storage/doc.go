// Package storage provides key-value persistence for pattern statistics.
//
// The statistics manager and the profiler never persist on their own. Callers
// hand them a KVStore and decide when to flush:
//
//	store, err := storage.NewSQLiteStore("~/.patternloop/patternloop.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := manager.Load(ctx, store); err != nil {
//	    logger.Warn("statistics not restored", "error", err)
//	}
//
//	// ... record executions ...
//
//	if manager.NeedsFlush() {
//	    _ = manager.Save(ctx, store)
//	}
//
// # Database Schema
//
// Tables:
//   - schema_version: Applied migrations (semantic versions)
//   - kv_entries: Key, opaque value, timestamps, write count
//
// # Implementations
//
//   - SQLiteStore: durable, WAL mode, single writer connection
//   - MemoryStore: in-process map for tests and ephemeral runs
//
// A missing key is reported as ErrNotFound. Callers treat it as "nothing
// persisted yet", never as a failure.
//
// # Build Tags
//
// CGO Build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo"
//
// Pure Go Build (purego tag, default):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
