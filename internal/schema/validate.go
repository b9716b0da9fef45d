package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

// docField is the CUE field that holds the rendered rule.
const docField = "doc"

// Violation is one reason a document failed validation.
type Violation struct {
	Path    string `json:"path"` // dotted path, "" for the document itself
	Message string `json:"message"`
}

// ValidationError reports every violation found in a document.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "validation failed: " + e.Violations[0].String()
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("validation failed with %d violation(s): %s", len(e.Violations), strings.Join(parts, "; "))
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Validator checks documents against a Rule.
//
// The rule is rendered once into a CUE expression; each document is
// unified with it and must come out concrete and conflict-free. A CUE
// context is not safe for concurrent use, so Validate serializes callers.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
	rule   Rule
	source string
}

// NewValidator compiles rule into a Validator.
func NewValidator(rule Rule) (*Validator, error) {
	src := RenderCUE(rule)

	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile validation schema: %w", err)
	}

	return &Validator{
		ctx:    ctx,
		schema: v.LookupPath(cue.ParsePath(docField)),
		rule:   rule,
		source: src,
	}, nil
}

// Source returns the CUE source the validator was compiled from.
func (v *Validator) Source() string {
	return v.source
}

// Validate checks a JSON-compatible document. It returns a
// *ValidationError when the document does not satisfy the rule.
func (v *Validator) Validate(doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	expr, err := cuejson.Extract("document.json", data)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	value := v.ctx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return fmt.Errorf("build document: %w", err)
	}

	unified := v.schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return newValidationError(v.rule, err)
	}
	return nil
}

// newValidationError turns CUE errors into violations. Disjunction
// summaries are dropped, as are conflicts with the null branch of a
// nullable rule. Branch conflicts of an enum collapse into one violation
// listing the allowed values.
func newValidationError(rule Rule, err error) *ValidationError {
	out := &ValidationError{}
	seen := make(map[Violation]bool)
	add := func(v Violation) {
		if !seen[v] {
			seen[v] = true
			out.Violations = append(out.Violations, v)
		}
	}

	for _, e := range cueerrors.Errors(err) {
		path := e.Path()
		if len(path) > 0 && path[0] == docField {
			path = path[1:]
		}
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if strings.Contains(format, "empty disjunction") {
			continue
		}

		violation := Violation{Path: strings.Join(path, "."), Message: msg}
		if at, ok := ruleAt(rule, path); ok && strings.HasPrefix(msg, "conflicting values") {
			if at.Nullable && conflictsWithNull(msg) {
				continue
			}
			if at.Type == RuleEnum {
				violation.Message = "must be one of " + quoteList(at.Values)
			}
		}
		add(violation)
	}

	if len(out.Violations) == 0 {
		out.Violations = append(out.Violations, Violation{Message: err.Error()})
	}
	return out
}

// ruleAt finds the rule governing path. Numeric segments index into
// array items.
func ruleAt(rule Rule, path []string) (Rule, bool) {
	for _, seg := range path {
		switch rule.Type {
		case RuleObject:
			rules, ok := rule.Properties[seg]
			if !ok {
				return Rule{}, false
			}
			rule = rules.Primary()
		case RuleArray:
			if _, err := strconv.Atoi(seg); err != nil {
				return Rule{}, false
			}
			rule = rule.Items.Primary()
		default:
			return Rule{}, false
		}
	}
	return rule, true
}

// conflictsWithNull reports whether a "conflicting values a and b" message
// has null on either side.
func conflictsWithNull(msg string) bool {
	if i := strings.Index(msg, " (mismatched"); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimPrefix(msg, "conflicting values ")
	return strings.HasPrefix(msg, "null and ") || strings.HasSuffix(msg, " and null")
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, ", ")
}

// RenderCUE renders rule as a CUE file defining the "doc" field.
//
// Strict objects become closed structs, optional properties use "?"
// labels, nullable rules are disjunctions with null, and string bounds use
// the strings builtins.
func RenderCUE(rule Rule) string {
	w := &cueWriter{imports: make(map[string]bool)}
	expr := w.rules(Rules{rule})

	var b strings.Builder
	if len(w.imports) > 0 {
		names := make([]string, 0, len(w.imports))
		for name := range w.imports {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "import %q\n", name)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s: %s\n", docField, expr)
	return b.String()
}

type cueWriter struct {
	imports map[string]bool
}

func (w *cueWriter) use(pkg string) {
	w.imports[pkg] = true
}

func (w *cueWriter) rules(rules Rules) string {
	if len(rules) == 0 {
		return "_"
	}
	parts := make([]string, len(rules))
	for i, rule := range rules {
		parts[i] = w.rule(rule)
	}
	return strings.Join(parts, " & ")
}

func (w *cueWriter) rule(r Rule) string {
	var parts []string

	switch r.Type {
	case RuleString:
		parts = append(parts, "string")
		if r.Min != nil {
			w.use("strings")
			parts = append(parts, fmt.Sprintf("strings.MinRunes(%d)", int(*r.Min)))
		}
		if r.Max != nil {
			w.use("strings")
			parts = append(parts, fmt.Sprintf("strings.MaxRunes(%d)", int(*r.Max)))
		}
		if r.Pattern != "" {
			parts = append(parts, "=~"+cueString(r.Pattern))
		}
	case RuleInteger, RuleNumber:
		if r.Type == RuleInteger {
			parts = append(parts, "int")
		} else {
			parts = append(parts, "number")
		}
		if r.Min != nil {
			parts = append(parts, ">="+formatNumber(*r.Min))
		}
		if r.Max != nil {
			parts = append(parts, "<="+formatNumber(*r.Max))
		}
	case RuleBoolean:
		parts = append(parts, "bool")
	case RuleEnum:
		if len(r.Values) == 0 {
			parts = append(parts, "_|_")
			break
		}
		values := make([]string, len(r.Values))
		for i, value := range r.Values {
			values[i] = cueString(value)
		}
		parts = append(parts, "("+strings.Join(values, " | ")+")")
	case RuleArray:
		parts = append(parts, "[..."+w.rules(r.Items)+"]")
		if r.Min != nil {
			w.use("list")
			parts = append(parts, fmt.Sprintf("list.MinItems(%d)", int(*r.Min)))
		}
		if r.Max != nil {
			w.use("list")
			parts = append(parts, fmt.Sprintf("list.MaxItems(%d)", int(*r.Max)))
		}
	case RuleObject:
		parts = append(parts, w.object(r))
	default:
		parts = append(parts, "_")
	}

	expr := strings.Join(parts, " & ")
	if r.Nullable {
		expr = "null | (" + expr + ")"
	}
	return "(" + expr + ")"
}

func (w *cueWriter) object(r Rule) string {
	names := make([]string, 0, len(r.Properties))
	for name := range r.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	decls := make([]string, len(names))
	for i, name := range names {
		rules := r.Properties[name]
		label := cueString(name)
		if rules.Primary().IsOptional() {
			label += "?"
		}
		decls[i] = label + ": " + w.rules(rules)
	}
	body := "{" + strings.Join(decls, ", ") + "}"

	if r.Strict {
		return "close(" + body + ")"
	}
	return body
}

// cueString quotes s as a CUE string literal. JSON string escapes are a
// subset of CUE's.
func cueString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
