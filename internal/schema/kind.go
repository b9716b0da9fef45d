package schema

// Kind is the value category of a member.
type Kind int

const (
	KindUnknown Kind = iota
	KindString
	KindInt
	KindFloat
	KindBoolean
	KindEnum
	KindObject
	KindList
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	KindString:  "string",
	KindInt:     "int",
	KindFloat:   "float",
	KindBoolean: "boolean",
	KindEnum:    "enum",
	KindObject:  "object",
	KindList:    "list",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsScalar reports whether k is one of the primitive value kinds.
func (k Kind) IsScalar() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBoolean:
		return true
	default:
		return false
	}
}
