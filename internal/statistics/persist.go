package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/patternloop/internal/storage"
)

// ExportReport is the serialized statistics shape consumed by export and
// visualization tooling. Field names are stable.
type ExportReport struct {
	ReportID      string                   `json:"report_id"`
	Timestamp     time.Time                `json:"timestamp"`
	PatternCount  int                      `json:"pattern_count"`
	Metrics       map[string]Metrics       `json:"metrics"`
	LanguageStats map[string]LanguageStats `json:"language_stats"`
	Analysis      Report                   `json:"analysis"`
}

// Export builds the full report. The last analysis is reused when present,
// otherwise a fresh one is computed.
func (m *Manager) Export() ExportReport {
	all := m.snapshots()

	metrics := make(map[string]Metrics, len(all))
	for _, x := range all {
		metrics[x.Identity().Key()] = x
	}

	analysis, ok := m.LastAnalysis()
	if !ok {
		analysis = m.Analyze()
	}

	return ExportReport{
		ReportID:      uuid.NewString(),
		Timestamp:     m.now(),
		PatternCount:  len(all),
		Metrics:       metrics,
		LanguageStats: m.LanguageStatistics(),
		Analysis:      analysis,
	}
}

// WriteExport writes Export as indented JSON
func (m *Manager) WriteExport(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.Export()); err != nil {
		return fmt.Errorf("failed to encode statistics export: %w", err)
	}
	return nil
}

// Save persists every record under storage.StatisticsKey and clears the
// flush signal on success.
func (m *Manager) Save(ctx context.Context, store storage.KVStore) error {
	all := m.snapshots()

	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("failed to encode pattern statistics: %w", err)
	}

	if err := store.Set(ctx, storage.StatisticsKey, data); err != nil {
		return fmt.Errorf("failed to save pattern statistics: %w", err)
	}

	m.MarkFlushed(len(all))
	m.logger.Info("saved pattern statistics", "patterns", len(all))
	return nil
}

// Load replaces the in-memory records with those persisted under
// storage.StatisticsKey. A missing entry leaves the manager unchanged and is
// not an error.
func (m *Manager) Load(ctx context.Context, store storage.KVStore) error {
	data, err := store.Get(ctx, storage.StatisticsKey)
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.Debug("no persisted pattern statistics")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load pattern statistics: %w", err)
	}

	var records []Metrics
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to decode pattern statistics: %w", err)
	}

	valid := records[:0]
	for _, r := range records {
		if err := r.Identity().Validate(); err != nil {
			m.logger.Warn("skipping persisted record", "key", r.Identity().Key(), "error", err)
			continue
		}
		valid = append(valid, r)
	}

	m.replace(valid)
	m.logger.Info("loaded pattern statistics", "patterns", len(valid))
	return nil
}
