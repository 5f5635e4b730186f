package predicate

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindByteString
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindByteString:
		return "bytestring"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a literal payload or an evaluation result. It is the only data
// type the core understands; everything a call produces or consumes is a
// Value, per spec.md §3's Literal variant and §4.6's streaming semantics.
type Value struct {
	Kind  Kind
	Num   float64
	Str   string
	Bytes []byte
	List  []Value
}

// Null is the singular null Value.
var Null = Value{Kind: KindNull}

// NumberValue builds a number Value.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// StringValue builds a string Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// ByteStringValue builds a byte-string Value.
func ByteStringValue(b []byte) Value { return Value{Kind: KindByteString, Bytes: b} }

// ListValue builds a list Value.
func ListValue(vs []Value) Value { return Value{Kind: KindList, List: vs} }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Truthy follows the convention used throughout the standard call library:
// null and the empty string/list are false, the number 0 is false, every
// other value is true. Calls that need a different boolean convention
// define it themselves; this is not part of the core contract.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindNumber:
		return v.Num != 0
	case KindString:
		return v.Str != ""
	case KindByteString:
		return len(v.Bytes) > 0
	case KindList:
		return len(v.List) > 0
	default:
		return false
	}
}

// Equal reports whether v and o are the same Value, structurally.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindNumber:
		return v.Num == o.Num
	case KindString:
		return v.Str == o.Str
	case KindByteString:
		return string(v.Bytes) == string(o.Bytes)
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders v in the same surface syntax the parser accepts, so that
// parse(String(v)) round-trips for literal-only values (spec.md §8 property 8).
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindString:
		return quoteSingle(v.Str)
	case KindByteString:
		return "b'" + escapeSingle(string(v.Bytes)) + "'"
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return fmt.Sprintf("<unknown value kind %d>", v.Kind)
	}
}

func quoteSingle(s string) string {
	return "'" + escapeSingle(s) + "'"
}

func escapeSingle(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}
