// Package learning proposes rewritten pattern definitions from the insights
// accumulated while a pattern was matched across projects.
package learning
