package predicate

import (
	"strconv"
)

// Parse parses expr as a single top-level S-expression, using cf to resolve
// call names. origin is an opaque file:line tag carried into any resulting
// ParseError or UnknownCallError; it is not attached to the returned node
// (callers add it themselves, as PerContext.Acquire does after AddRoot —
// Parse itself never touches a graph).
//
// Historic quirk (see spec §9 Open Question): the parser accepts the input
// being fully consumed, or having exactly one unconsumed trailing byte.
// Anything left over beyond that one byte is rejected as trailing garbage.
// This mirrors an observed behavior of the original implementation
// (`i != expr.length() - 1` in ibmod_predicate_core.cpp) that may well be an
// off-by-one rather than a deliberate grammar feature; it is preserved here
// rather than "corrected," since nothing in the spec resolves the question.
func Parse(expr string, cf *CallFactory, origin string) (*Node, error) {
	node, consumed, err := parseExpr(expr, 0, cf, origin)
	if err != nil {
		return nil, err
	}
	leftover := len(expr) - consumed
	if leftover > 1 {
		return nil, newParseError(expr, consumed, origin)
	}
	return node, nil
}

// ParseAt parses a single expression starting at offset i within expr,
// returning the node and the offset immediately following the consumed
// text. It is exported so transforms and templates can reuse it without
// going through the top-level trailing-byte check.
func ParseAt(expr string, i int, cf *CallFactory, origin string) (*Node, int, error) {
	return parseExpr(expr, i, cf, origin)
}

func parseExpr(expr string, i int, cf *CallFactory, origin string) (*Node, int, error) {
	if i >= len(expr) {
		return nil, i, newParseError(expr, i, origin)
	}
	switch expr[i] {
	case '(':
		return parseCall(expr, i, cf, origin)
	case '[':
		return parseList(expr, i, cf, origin)
	case '\'':
		return parseString(expr, i, origin)
	default:
		if hasPrefixAt(expr, i, "null") && !isIdentByte(byteAt(expr, i+4)) {
			n := NewLiteral(Null)
			return n, i + 4, nil
		}
		if expr[i] == 'b' && byteAt(expr, i+1) == '\'' {
			return parseByteString(expr, i+1, origin)
		}
		if isNumberStart(expr[i]) {
			return parseNumber(expr, i, origin)
		}
		return nil, i, newParseError(expr, i, origin)
	}
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func hasPrefixAt(s string, i int, prefix string) bool {
	if i+len(prefix) > len(s) {
		return false
	}
	return s[i:i+len(prefix)] == prefix
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '-' || b == '?' || b == '!' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isNumberStart(b byte) bool {
	return b == '-' || b == '+' || (b >= '0' && b <= '9')
}

func parseCall(expr string, i int, cf *CallFactory, origin string) (*Node, int, error) {
	start := i
	i++ // consume '('

	nameStart := i
	for i < len(expr) && isIdentByte(expr[i]) {
		i++
	}
	if i == nameStart {
		return nil, start, newParseError(expr, start, origin)
	}
	name := expr[nameStart:i]

	var args []*Node
	for {
		if i >= len(expr) {
			return nil, i, newParseError(expr, i, origin)
		}
		if expr[i] == ')' {
			i++
			break
		}
		if expr[i] != ' ' {
			return nil, i, newParseError(expr, i, origin)
		}
		i++ // consume the single space separator
		arg, next, err := parseExpr(expr, i, cf, origin)
		if err != nil {
			return nil, next, err
		}
		args = append(args, arg)
		i = next
	}

	node, err := cf.New(name, args, origin)
	if err != nil {
		if uce, ok := err.(*UnknownCallError); ok {
			uce.Origin = origin
		}
		return nil, start, err
	}
	return node, i, nil
}

func parseList(expr string, i int, cf *CallFactory, origin string) (*Node, int, error) {
	start := i
	i++ // consume '['

	var elems []Value
	for {
		if i >= len(expr) {
			return nil, i, newParseError(expr, i, origin)
		}
		if expr[i] == ']' {
			i++
			break
		}
		if len(elems) > 0 {
			if expr[i] != ' ' {
				return nil, i, newParseError(expr, i, origin)
			}
			i++
		}
		elemNode, next, err := parseExpr(expr, i, cf, origin)
		if err != nil {
			return nil, next, err
		}
		if !elemNode.IsLiteral() {
			return nil, i, newParseError(expr, i, origin)
		}
		elems = append(elems, elemNode.Literal())
		i = next
	}
	_ = start
	return NewLiteral(ListValue(elems)), i, nil
}

func parseString(expr string, i int, origin string) (*Node, int, error) {
	s, next, err := scanQuoted(expr, i, origin)
	if err != nil {
		return nil, next, err
	}
	return NewLiteral(StringValue(s)), next, nil
}

func parseByteString(expr string, i int, origin string) (*Node, int, error) {
	s, next, err := scanQuoted(expr, i, origin)
	if err != nil {
		return nil, next, err
	}
	return NewLiteral(ByteStringValue([]byte(s))), next, nil
}

// scanQuoted scans a '...' token starting at the opening quote, handling
// backslash escapes, per the string grammar production in spec §4.1.
func scanQuoted(expr string, i int, origin string) (string, int, error) {
	start := i
	if i >= len(expr) || expr[i] != '\'' {
		return "", start, newParseError(expr, start, origin)
	}
	i++
	var b []byte
	for {
		if i >= len(expr) {
			return "", i, newParseError(expr, i, origin)
		}
		c := expr[i]
		if c == '\'' {
			i++
			return string(b), i, nil
		}
		if c == '\\' {
			i++
			if i >= len(expr) {
				return "", i, newParseError(expr, i, origin)
			}
			b = append(b, expr[i])
			i++
			continue
		}
		b = append(b, c)
		i++
	}
}

func parseNumber(expr string, i int, origin string) (*Node, int, error) {
	start := i
	if expr[i] == '-' || expr[i] == '+' {
		i++
	}
	digitsStart := i
	for i < len(expr) && expr[i] >= '0' && expr[i] <= '9' {
		i++
	}
	if i == digitsStart {
		return nil, start, newParseError(expr, start, origin)
	}
	if i < len(expr) && expr[i] == '.' {
		i++
		fracStart := i
		for i < len(expr) && expr[i] >= '0' && expr[i] <= '9' {
			i++
		}
		if i == fracStart {
			return nil, start, newParseError(expr, start, origin)
		}
	}
	n, err := strconv.ParseFloat(expr[start:i], 64)
	if err != nil {
		return nil, start, newParseError(expr, start, origin)
	}
	return NewLiteral(NumberValue(n)), i, nil
}
