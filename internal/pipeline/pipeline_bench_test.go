package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/dshills/patternloop/internal/profiler"
	"github.com/dshills/patternloop/internal/recovery"
	"github.com/dshills/patternloop/internal/statistics"
	"github.com/dshills/patternloop/pkg/types"
)

// benchPatterns returns n go patterns that match the "func" marker
func benchPatterns(n int) []Pattern {
	patterns := make([]Pattern, n)
	for i := range patterns {
		patterns[i] = Pattern{
			Identity: types.Identity{Language: "go", Type: types.PatternCodeStructure, ID: fmt.Sprintf("p%d", i)},
			Query:    "(_) @fn",
		}
	}
	return patterns
}

// BenchmarkRun benchmarks a full run over the fixtures
func BenchmarkRun(b *testing.B) {
	files := loadFixtures(b)
	patterns := benchPatterns(20)
	ctx := context.Background()

	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			r := New(newExecutor(), statistics.NewManager(), recovery.NewEngine())
			config := &Config{Workers: workers}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := r.Run(ctx, files, patterns, config); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRun_Recovery benchmarks runs where every primary query misses
func BenchmarkRun_Recovery(b *testing.B) {
	files := loadFixtures(b)
	patterns := []Pattern{{
		Identity:     types.Identity{Language: "go", Type: types.PatternCodeStructure, ID: "funcs"},
		Query:        "(function_declaration)",
		RegexPattern: `func\s+(?P<name>\w+)`,
	}}
	r := New(blindExecutor{}, statistics.NewManager(), recovery.NewEngine())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Run(ctx, files, patterns, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRun_Profiled measures the overhead of compile profiling
func BenchmarkRun_Profiled(b *testing.B) {
	files := loadFixtures(b)
	patterns := benchPatterns(20)
	exec := &compilingExecutor{fakeExecutor: newExecutor()}
	r := New(exec, statistics.NewManager(), recovery.NewEngine(), WithProfiler(profiler.New()))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Run(ctx, files, patterns, nil); err != nil {
			b.Fatal(err)
		}
	}
}
