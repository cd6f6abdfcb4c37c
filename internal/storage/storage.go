package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested key doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned when the store has been closed
	ErrClosed = errors.New("store closed")
)

// StatisticsKey is the key under which the full metrics map is persisted
const StatisticsKey = "pattern_statistics:metrics"

// ProfilerReportKey is the key under which the latest profiler report is persisted
const ProfilerReportKey = "pattern_profiler:report"

// KVStore defines the key-value persistence used to save and restore state
// across restarts. Values are opaque byte slices; absence is ErrNotFound.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
