package learning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patternloop/pkg/types"
)

func bagWithMatches(n int) *types.InsightBag {
	bag := types.NewInsightBag()
	for i := 0; i < n; i++ {
		bag.Matches = append(bag.Matches, types.Match{})
	}
	return bag
}

func TestNodePatternImprovement(t *testing.T) {
	ctx := context.Background()
	s := NodePatternImprovement{}

	t.Run("no node frequencies", func(t *testing.T) {
		p, err := s.Improve(ctx, "(call (_))", types.NewInsightBag(), "go")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("no wildcard references", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.NodeTypeFrequencies["identifier"] = 4
		p, err := s.Improve(ctx, "(call (identifier))", bag, "go")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("replaces first wildcard only", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.NodeTypeFrequencies["identifier"] = 5
		bag.NodeTypeFrequencies["member_expression"] = 2

		p, err := s.Improve(ctx, "(call_expression function: (_) @fn arguments: (.))", bag, "javascript")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "(call_expression function: (identifier) @fn arguments: (.))", p.Pattern)
		assert.InDelta(t, 0.55, p.Confidence, 1e-9)
	})

	t.Run("ties pick the lexically first node type", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.NodeTypeFrequencies["zeta"] = 3
		bag.NodeTypeFrequencies["alpha"] = 3
		p, err := s.Improve(ctx, "(.)", bag, "go")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "(alpha)", p.Pattern)
	})

	t.Run("confidence capped", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.NodeTypeFrequencies["identifier"] = 1
		bag.PatternConfidence = 0.93
		p, err := s.Improve(ctx, "(_)", bag, "go")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, MaxConfidence, p.Confidence)
	})
}

func TestCaptureOptimization(t *testing.T) {
	ctx := context.Background()
	s := CaptureOptimization{}

	t.Run("no rare captures", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.CaptureFrequencies["name"] = 10
		p, err := s.Improve(ctx, "(identifier) @name", bag, "python")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("removes rare and adds common captures", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.CaptureFrequencies["name"] = 10
		bag.CaptureFrequencies["body"] = 1
		bag.StructureFrequencies["stmts:block"] = 6
		bag.StructureFrequencies["name:identifier"] = 10

		p, err := s.Improve(ctx, "(function_definition name: (identifier) @name body: (block) @body)", bag, "python")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "(function_definition name: (identifier) @name body: (block) @stmts )", p.Pattern)
		assert.InDelta(t, 0.55, p.Confidence, 1e-9)
	})

	t.Run("removal respects word boundaries", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.CaptureFrequencies["body"] = 2

		p, err := s.Improve(ctx, "(a) @body (b) @body_text", bag, "python")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "(a)  (b) @body_text", p.Pattern)
		assert.InDelta(t, 0.5, p.Confidence, 1e-9)
	})

	t.Run("infrequent structures are not captured", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.CaptureFrequencies["gone"] = 1
		bag.StructureFrequencies["stmts:block"] = 4

		p, err := s.Improve(ctx, "(block) @gone", bag, "python")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "(block) ", p.Pattern)
	})

	t.Run("rare captures absent from pattern", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.CaptureFrequencies["missing"] = 1
		p, err := s.Improve(ctx, "(identifier) @name", bag, "python")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestPredicateRefinement(t *testing.T) {
	ctx := context.Background()
	s := PredicateRefinement{}

	const matchPred = `#match? @name "^test_.*$"`
	const eqPred = `#eq? @name "main"`

	t.Run("relaxes match anchors", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.PredicateOutcomes[matchPred] = types.PredicateOutcome{Success: 1, Failure: 9}

		p, err := s.Improve(ctx, `((identifier) @name (`+matchPred+`))`, bag, "python")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, `((identifier) @name (#match? @name "test_.*"))`, p.Pattern)
		assert.InDelta(t, 0.47, p.Confidence, 1e-9)
	})

	t.Run("removes eq predicate", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.PredicateOutcomes[eqPred] = types.PredicateOutcome{Success: 0, Failure: 6}

		p, err := s.Improve(ctx, `((identifier) @name (`+eqPred+`))`, bag, "go")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, `((identifier) @name ())`, p.Pattern)
	})

	t.Run("needs more than five occurrences", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.PredicateOutcomes[eqPred] = types.PredicateOutcome{Success: 0, Failure: 5}
		p, err := s.Improve(ctx, `(`+eqPred+`)`, bag, "go")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("success rate at or above 30 percent is kept", func(t *testing.T) {
		bag := types.NewInsightBag()
		bag.PredicateOutcomes[eqPred] = types.PredicateOutcome{Success: 2, Failure: 4}
		p, err := s.Improve(ctx, `(`+eqPred+`)`, bag, "go")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("confidence floored", func(t *testing.T) {
		other := `#not_eq? @kind "x"`
		bag := types.NewInsightBag()
		bag.PatternConfidence = 0.31
		bag.PredicateOutcomes[eqPred] = types.PredicateOutcome{Failure: 6}
		bag.PredicateOutcomes[other] = types.PredicateOutcome{Failure: 8}

		p, err := s.Improve(ctx, `((a) @name @kind (`+eqPred+`) (`+other+`))`, bag, "go")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, `((a) @name @kind () ())`, p.Pattern)
		assert.Equal(t, MinConfidence, p.Confidence)
	})
}

func TestPatternGeneralization(t *testing.T) {
	ctx := context.Background()
	s := PatternGeneralization{}

	t.Run("needs five matches", func(t *testing.T) {
		p, err := s.Improve(ctx, `(#eq? @name "handler")`, bagWithMatches(4), "go")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("replaces long literals", func(t *testing.T) {
		p, err := s.Improve(ctx, `((identifier) @name (#eq? @name "handler") (#eq? @x "abc"))`, bagWithMatches(5), "go")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, `((identifier) @name (#eq? @name ".*") (#eq? @x "abc"))`, p.Pattern)
		assert.InDelta(t, 0.48, p.Confidence, 1e-9)
	})

	t.Run("skips regex literals", func(t *testing.T) {
		p, err := s.Improve(ctx, `(#match? @name "^test_")`, bagWithMatches(5), "go")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("makes known child optional", func(t *testing.T) {
		p, err := s.Improve(ctx, `(class_definition body: (method_definition) @m)`, bagWithMatches(5), "python")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, `(class_definition body: (method_definition)? @m)`, p.Pattern)
		assert.InDelta(t, 0.49, p.Confidence, 1e-9)
	})

	t.Run("already optional child is unchanged", func(t *testing.T) {
		p, err := s.Improve(ctx, `(class_definition body: (method_definition)? @m)`, bagWithMatches(5), "python")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("confidence floored", func(t *testing.T) {
		bag := bagWithMatches(5)
		bag.PatternConfidence = 0.3
		p, err := s.Improve(ctx, `(for_statement (body) "counter")`, bag, "python")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, `(for_statement (body)? ".*")`, p.Pattern)
		assert.Equal(t, MinConfidence, p.Confidence)
	})
}

func TestStrategies_NilBag(t *testing.T) {
	ctx := context.Background()
	pattern := `(call_expression function: (_) @fn (#eq? @fn "main"))`
	for _, s := range DefaultStrategies() {
		t.Run(s.Name(), func(t *testing.T) {
			var p *Proposal
			var err error
			require.NotPanics(t, func() {
				p, err = s.Improve(ctx, pattern, nil, "go")
			})
			require.NoError(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, MinConfidence, clampConfidence(-1))
	assert.Equal(t, MaxConfidence, clampConfidence(2))
	assert.Equal(t, 0.5, clampConfidence(0.5))
}
