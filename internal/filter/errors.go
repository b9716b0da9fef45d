package filter

import (
	"fmt"
	"strings"
)

// Error is a filter expression that does not conform to its grammar.
type Error struct {
	Path   string // dotted path of the offending key, "" for the expression itself
	Reason string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "invalid filter: " + e.Reason
	}
	return fmt.Sprintf("invalid filter at %s: %s", e.Path, e.Reason)
}

// Problems is every conformance problem found in a filter expression.
type Problems []*Error

func (p Problems) Error() string {
	switch len(p) {
	case 0:
		return "no filter problems"
	case 1:
		return p[0].Error()
	}
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d filter problems: %s", len(p), strings.Join(parts, "; "))
}

// Unwrap exposes the individual problems to errors.As and errors.Is.
func (p Problems) Unwrap() []error {
	errs := make([]error, len(p))
	for i, e := range p {
		errs[i] = e
	}
	return errs
}

func joinPath(scope, key string) string {
	if scope == "" {
		return key
	}
	return scope + "." + key
}
