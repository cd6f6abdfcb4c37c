// Package statistics tracks per-pattern execution metrics and turns them
// into value scores, analysis reports and cache-warming suggestions.
//
// # Basic Usage
//
//	mgr := statistics.NewManager(statistics.WithLogger(logger))
//
//	id := types.Identity{Language: "go", Type: types.PatternCodeStructure, ID: "function"}
//	if err := mgr.Record(id, 12.5, 0.4, 3, 2048); err != nil {
//	    return err
//	}
//
//	report := mgr.Analyze()
//	for _, rec := range report.Recommendations {
//	    fmt.Println(rec.Type, rec.PatternID, rec.Reason)
//	}
//
// # Derived Metrics
//
// Every record keeps cumulative counters and derives three values from them
// whenever it is read:
//
//	hit_ratio             = matches / max(1, executions)
//	avg_execution_time_ms = total_execution_time_ms / max(1, executions)
//	value_score           = (hit_ratio * 100) / (avg_execution_time_ms + 1)
//
// Histories of execution times, match counts and timestamps hold the most
// recent HistoryLimit entries.
//
// # Persistence
//
// The manager never writes to storage on its own. NeedsFlush turns true each
// time the number of distinct identities reaches a multiple of FlushCadence;
// the caller then invokes Save:
//
//	if mgr.NeedsFlush() {
//	    if err := mgr.Save(ctx, store); err != nil {
//	        logger.Warn("statistics flush failed", "error", err)
//	    }
//	}
//
// # Thread Safety
//
// All Manager methods are safe for concurrent use. Updates to one identity are
// serialized by that record's mutex; updates to different identities proceed
// in parallel.
package statistics
