package schema

// RuleType tags the value category a Rule checks.
type RuleType string

const (
	RuleAny     RuleType = "any"
	RuleString  RuleType = "string"
	RuleNumber  RuleType = "number"
	RuleInteger RuleType = "integer"
	RuleBoolean RuleType = "boolean"
	RuleEnum    RuleType = "enum"
	RuleArray   RuleType = "array"
	RuleObject  RuleType = "object"
)

// Rule is one validation rule.
//
// Optional is tri-state: nil means unset (required), true means the value
// may be absent, false is an explicit override that update conversion keeps.
// Min and Max bound string length, numeric value or array length depending
// on Type. Strict objects reject properties they do not declare.
type Rule struct {
	Type       RuleType   `json:"type"`
	Optional   *bool      `json:"optional,omitempty"`
	Nullable   bool       `json:"nullable,omitempty"`
	Min        *float64   `json:"min,omitempty"`
	Max        *float64   `json:"max,omitempty"`
	Pattern    string     `json:"pattern,omitempty"`
	Values     []string   `json:"values,omitempty"`
	Items      Rules      `json:"items,omitempty"`
	Properties Properties `json:"properties,omitempty"`
	Strict     bool       `json:"strict,omitempty"`
}

// Rules is the list form of a property rule. The first rule is the
// authoritative type rule; the rest are auxiliary constraints that must
// all hold as well.
type Rules []Rule

// Properties maps property names to their rules.
type Properties map[string]Rules

// Bool returns a pointer to b, for Rule.Optional.
func Bool(b bool) *bool {
	return &b
}

// Number returns a pointer to n, for Rule.Min and Rule.Max.
func Number(n float64) *float64 {
	return &n
}

// IsOptional reports whether the rule explicitly allows absence.
func (r Rule) IsOptional() bool {
	return r.Optional != nil && *r.Optional
}

// IsRequiredOverride reports whether optionality was explicitly forbidden.
func (r Rule) IsRequiredOverride() bool {
	return r.Optional != nil && !*r.Optional
}

// Primary returns the authoritative rule, or an any-rule when rs is empty.
func (rs Rules) Primary() Rule {
	if len(rs) == 0 {
		return Rule{Type: RuleAny}
	}
	return rs[0]
}

func (rs Rules) clone() Rules {
	if rs == nil {
		return nil
	}
	out := make(Rules, len(rs))
	copy(out, rs)
	return out
}

// withPrimary returns a copy of rs with fn applied to the primary rule.
func (rs Rules) withPrimary(fn func(*Rule)) Rules {
	out := rs.clone()
	if len(out) == 0 {
		out = Rules{{Type: RuleAny}}
	}
	fn(&out[0])
	return out
}

// ConvertForUpdate derives an update schema from a creation schema.
//
// Every reachable rule becomes optional unless it carries an explicit
// Optional=false. Object rules recurse into their properties. Rules are
// copied, never modified in place, and applying the conversion twice
// yields the same schema as applying it once.
func ConvertForUpdate(props Properties) Properties {
	out := make(Properties, len(props))
	for name, rules := range props {
		converted := make(Rules, len(rules))
		for i, rule := range rules {
			converted[i] = convertRuleForUpdate(rule)
		}
		out[name] = converted
	}
	return out
}

func convertRuleForUpdate(rule Rule) Rule {
	if !rule.IsRequiredOverride() {
		rule.Optional = Bool(true)
	}
	if rule.Type == RuleObject && rule.Properties != nil {
		rule.Properties = ConvertForUpdate(rule.Properties)
	}
	return rule
}
