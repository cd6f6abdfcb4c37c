package statistics

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/patternloop/internal/telemetry"
	"github.com/dshills/patternloop/pkg/types"
)

// FlushCadence is the distinct-identity interval at which NeedsFlush turns true
const FlushCadence = 10

// Manager owns the metrics records for a set of pattern identities.
// It is safe for concurrent use: the record map is guarded by an RWMutex
// and each record carries its own mutex, so writers to different
// identities only contend on the map lookup.
type Manager struct {
	mu      sync.RWMutex
	records map[string]*record
	order   []string // insertion order, used as the stable tie-breaker

	flushPending bool
	flushedCount int

	analysisMu   sync.Mutex
	lastAnalysis *Report

	logger  *slog.Logger
	now     func() time.Time
	metrics *telemetry.Collectors
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for persistence hints and load/save events
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock replaces time.Now, mainly for staleness tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTelemetry attaches Prometheus collectors
func WithTelemetry(c *telemetry.Collectors) Option {
	return func(m *Manager) {
		m.metrics = c
	}
}

// NewManager creates an empty statistics manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		records: make(map[string]*record),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record applies one pattern execution to the identity's metrics record,
// creating it on first use.
func (m *Manager) Record(id types.Identity, executionMs, compilationMs float64, matchesFound int, memoryBytes int64) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if executionMs < 0 || compilationMs < 0 || matchesFound < 0 || memoryBytes < 0 {
		return fmt.Errorf("%w: %s", types.ErrNegativeValue, id.Key())
	}

	key := id.Key()
	for {
		// The map read lock is held across the update so Reset or Load
		// cannot swap the record out from under it.
		m.mu.RLock()
		r, ok := m.records[key]
		if ok {
			r.mu.Lock()
			r.update(executionMs, compilationMs, matchesFound, memoryBytes, m.now())
			r.mu.Unlock()
		}
		m.mu.RUnlock()
		if ok {
			break
		}
		m.create(id)
	}

	m.metrics.IncRecord(id.Language)
	return nil
}

// create inserts an empty record unless another writer got there first
func (m *Manager) create(id types.Identity) {
	key := id.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[key]; ok {
		return
	}

	m.records[key] = newRecord(id)
	m.order = append(m.order, key)

	if n := len(m.records); n%FlushCadence == 0 && n > m.flushedCount {
		m.flushPending = true
		m.logger.Debug("pattern statistics ready to persist", "patterns", n)
	}
}

// NeedsFlush reports whether enough new identities have been seen since the
// last flush that the caller should persist the statistics. Record never
// persists on its own.
func (m *Manager) NeedsFlush() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushPending
}

// MarkFlushed records that the first n identities were persisted. The
// flush signal stays set when identities added since then have already
// crossed another FlushCadence boundary. Save calls it on success.
func (m *Manager) MarkFlushed(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n = min(max(n, 0), len(m.records))
	m.flushedCount = n
	m.flushPending = len(m.records)/FlushCadence > n/FlushCadence
}

// Len returns the number of distinct identities recorded
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Metrics returns a snapshot of one identity's record
func (m *Manager) Metrics(id types.Identity) (Metrics, bool) {
	m.mu.RLock()
	r, ok := m.records[id.Key()]
	m.mu.RUnlock()
	if !ok {
		return Metrics{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(), true
}

// Reset drops every record and the cached analysis
func (m *Manager) Reset() {
	m.mu.Lock()
	m.records = make(map[string]*record)
	m.order = nil
	m.flushPending = false
	m.flushedCount = 0
	m.mu.Unlock()

	m.analysisMu.Lock()
	m.lastAnalysis = nil
	m.analysisMu.Unlock()
}

// snapshots copies every record in insertion order. Its length is the
// identity count at the moment the map was read.
func (m *Manager) snapshots() []Metrics {
	m.mu.RLock()
	recs := make([]*record, 0, len(m.order))
	for _, key := range m.order {
		recs = append(recs, m.records[key])
	}
	m.mu.RUnlock()

	out := make([]Metrics, 0, len(recs))
	for _, r := range recs {
		r.mu.Lock()
		out = append(out, r.snapshot())
		r.mu.Unlock()
	}
	return out
}

// replace swaps the full record set, used by Load
func (m *Manager) replace(records []Metrics) {
	fresh := make(map[string]*record, len(records))
	order := make([]string, 0, len(records))
	for _, snap := range records {
		r := restore(snap)
		key := r.id.Key()
		if _, dup := fresh[key]; dup {
			continue
		}
		fresh[key] = r
		order = append(order, key)
	}

	m.mu.Lock()
	m.records = fresh
	m.order = order
	m.flushPending = false
	m.flushedCount = len(fresh)
	m.mu.Unlock()

	m.analysisMu.Lock()
	m.lastAnalysis = nil
	m.analysisMu.Unlock()
}
