// Package profiler measures pattern compilation cost and flags patterns
// whose compile time, frequency or static complexity make them bottlenecks.
package profiler
