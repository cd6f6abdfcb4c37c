// Package regexpool shares compiled coregex patterns between goroutines.
//
// A *coregex.Regex keeps per-search state and must not be used by two
// goroutines at once. Regex keeps a sync.Pool of instances compiled from the
// same expression and lends one out for the duration of each call.
package regexpool

import (
	"slices"
	"sync"

	"github.com/coregx/coregex"
)

// Regex is a compiled expression safe for concurrent use
type Regex struct {
	expr  string
	names []string
	pool  sync.Pool
}

// Compile parses expr and returns a pooled Regex
func Compile(expr string) (*Regex, error) {
	re, err := coregex.Compile(expr)
	if err != nil {
		return nil, err
	}

	r := &Regex{expr: expr, names: re.SubexpNames()}
	// expr is known to compile
	r.pool.New = func() any { return coregex.MustCompile(expr) }
	r.pool.Put(re)
	return r, nil
}

// MustCompile is like Compile but panics on an invalid expression
func MustCompile(expr string) *Regex {
	r, err := Compile(expr)
	if err != nil {
		panic("regexpool: Compile(" + expr + "): " + err.Error())
	}
	return r
}

func (r *Regex) acquire() *coregex.Regex {
	return r.pool.Get().(*coregex.Regex)
}

func (r *Regex) release(re *coregex.Regex) {
	r.pool.Put(re)
}

// String returns the source expression
func (r *Regex) String() string {
	return r.expr
}

// SubexpNames returns the names of the parenthesized subexpressions
func (r *Regex) SubexpNames() []string {
	return slices.Clone(r.names)
}

// MatchString reports whether s contains a match
func (r *Regex) MatchString(s string) bool {
	re := r.acquire()
	defer r.release(re)
	return re.MatchString(s)
}

// FindStringIndex returns the location of the leftmost match, or nil
func (r *Regex) FindStringIndex(s string) []int {
	re := r.acquire()
	defer r.release(re)
	return re.FindStringIndex(s)
}

// FindStringSubmatch returns the leftmost match and its submatches, or nil
func (r *Regex) FindStringSubmatch(s string) []string {
	re := r.acquire()
	defer r.release(re)
	return re.FindStringSubmatch(s)
}

// FindAllStringSubmatch returns up to n successive matches with submatches
func (r *Regex) FindAllStringSubmatch(s string, n int) [][]string {
	re := r.acquire()
	defer r.release(re)
	return re.FindAllStringSubmatch(s, n)
}

// FindAllStringSubmatchIndex returns index pairs for up to n successive matches
func (r *Regex) FindAllStringSubmatchIndex(s string, n int) [][]int {
	re := r.acquire()
	defer r.release(re)
	return re.FindAllStringSubmatchIndex(s, n)
}

// ReplaceAllString replaces every match of r in src with repl
func (r *Regex) ReplaceAllString(src, repl string) string {
	re := r.acquire()
	defer r.release(re)
	return re.ReplaceAllString(src, repl)
}
