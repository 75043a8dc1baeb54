// Package match evaluates ordered (pattern, result) tables where the first
// matching rule wins. Tables are data, so precedence is visible in one place
// and reordering is an explicit edit rather than a change to branch logic.
package match

import (
	"fmt"
	"regexp"
)

// Rule pairs a case-insensitive pattern with the value it yields.
type Rule[T any] struct {
	Pattern *regexp.Regexp
	Result  T
}

// Table is an ordered list of rules.
type Table[T any] []Rule[T]

// R compiles a case-insensitive rule. It panics on an invalid pattern, so it
// is meant for package-level tables.
func R[T any](pattern string, result T) Rule[T] {
	return Rule[T]{Pattern: regexp.MustCompile("(?i)" + pattern), Result: result}
}

// Compile builds a rule from untrusted input (e.g. a config file).
func Compile[T any](pattern string, result T) (Rule[T], error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Rule[T]{}, fmt.Errorf("compile rule %q: %w", pattern, err)
	}
	return Rule[T]{Pattern: re, Result: result}, nil
}

// First returns the result of the first rule whose pattern matches text.
func (t Table[T]) First(text string) (T, bool) {
	for _, rule := range t {
		if rule.Pattern.MatchString(text) {
			return rule.Result, true
		}
	}
	var zero T
	return zero, false
}

// Any reports whether any rule matches text.
func (t Table[T]) Any(text string) bool {
	_, ok := t.First(text)
	return ok
}
