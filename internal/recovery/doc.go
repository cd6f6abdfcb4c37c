// Package recovery recovers matches for a pattern whose primary structural
// query produced nothing.
//
// An Engine holds an ordered chain of strategies and stops at the first one
// that succeeds:
//
//	engine := recovery.NewEngine(recovery.WithLogger(logger))
//	res := engine.Recover(ctx, source, "function", recovery.Params{
//	    Executor:        executor,
//	    FallbackQueries: []string{"(function_declaration) @fn", "(method_declaration) @fn"},
//	    Query:           "(function_declaration) @fn",
//	    RegexPattern:    `^func\s+(?P<name>\w+)`,
//	})
//	if errors.Is(res.Err, recovery.ErrNoMatch) {
//	    // leave the pattern unmatched
//	}
//
// Each strategy keeps attempt and success counts plus a running mean of the
// time its successful recoveries took. A strategy interrupted by context
// cancellation is not counted.
package recovery
