// Package pipeline runs pattern catalogs over source files and closes the
// feedback loop around them.
//
// For every (file, pattern) pair a Runner executes the primary structural
// query, records the outcome in the statistics manager and, when the query
// errors or finds nothing, hands the file to the recovery engine. Matches
// from either path are folded into a per-pattern insight bag that Refine
// later feeds through the learning engine.
//
// Files are processed concurrently with a worker pool bounded by
// Config.Workers. A failure in one file never aborts the run; only context
// cancellation does. At most Config.MaxErrorMessages errors are kept.
//
// RegexExecutor runs queries as multi-line regular expressions when no
// syntax-tree executor is attached.
//
// Usage:
//
//	r := pipeline.New(executor, stats, recoveryEngine,
//		pipeline.WithProfiler(prof),
//		pipeline.WithLearning(learningEngine))
//
//	result, err := r.Run(ctx, files, patterns, nil)
//	if err != nil {
//		return err
//	}
//	refinements, err := r.Refine(ctx)
package pipeline
