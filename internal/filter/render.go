package filter

import (
	"fmt"
	"strings"

	"github.com/roach88/shapeql/internal/schema"
)

// Render writes the grammar's input types as SDL, starting with the
// grammar itself and following field order. Each named type is written
// once.
//
// Example:
//
//	input UserFilter {
//	  name: StringOperators
//	  And: [UserFilter!]
//	}
func (g *Grammar) Render() string {
	r := &renderer{seen: make(map[string]bool)}
	r.visit(g.Record().ReadType())
	return strings.Join(r.blocks, "\n")
}

type renderer struct {
	seen   map[string]bool
	blocks []string
}

func (r *renderer) visit(t *schema.Type) {
	for t.Kind == schema.TypeList {
		t = t.Elem
	}
	if t.Kind != schema.TypeObject && t.Kind != schema.TypeEnum {
		return
	}
	if r.seen[t.Name] {
		return
	}
	r.seen[t.Name] = true

	var b strings.Builder
	if t.Kind == schema.TypeEnum {
		fmt.Fprintf(&b, "enum %s {\n", t.Name)
		for _, v := range t.Values {
			fmt.Fprintf(&b, "  %s\n", v)
		}
		b.WriteString("}\n")
		r.blocks = append(r.blocks, b.String())
		return
	}

	fmt.Fprintf(&b, "input %s {\n", t.Name)
	for _, f := range t.Fields {
		fmt.Fprintf(&b, "  %s: %s\n", f.Name, f.Type)
	}
	b.WriteString("}\n")
	r.blocks = append(r.blocks, b.String())

	for _, f := range t.Fields {
		r.visit(f.Type)
	}
}
