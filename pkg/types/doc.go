// Package types provides shared type definitions for patternloop.
//
// This package defines the domain types passed between the statistics manager,
// the recovery and learning engines, and the external collaborators that
// execute structural queries against source text.
//
// # Pattern Identity
//
// Every metrics record is addressed by an Identity, a composite of language,
// pattern type, and pattern ID:
//
//	id := types.Identity{
//	    Language: "python",
//	    Type:     types.PatternCodeStructure,
//	    ID:       "class_definition",
//	}
//	key := id.Key() // "python:code_structure:class_definition"
//
// Keys are stable across process restarts and are used as store keys.
//
// # Matches
//
// Match is the record produced by a structural query (or a recovery strategy).
// Captures carry byte offsets relative to the full source text:
//
//	for name, caps := range match.Captures {
//	    for _, c := range caps {
//	        fmt.Printf("%s: %q [%d,%d)\n", name, c.Text, c.StartByte, c.EndByte)
//	    }
//	}
//
// # Insight Bags
//
// InsightBag accumulates node, capture, structure, and predicate frequencies
// across many executions of one pattern. It is owned by the caller and fed to
// the learning engine:
//
//	bag := types.NewInsightBag()
//	for _, m := range matches {
//	    bag.Observe(m)
//	}
//	bag.ObservePredicate(`(#match? @name "^test_")`, false)
package types
