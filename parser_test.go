package predicate

import (
	"errors"
	"testing"

	"github.com/matryer/is"
)

func testFactory(t *testing.T) *CallFactory {
	cf := NewCallFactory()
	is := is.New(t)
	is.NoErr(cf.Register("and", func() CallImplementation { return &stubCall{} }))
	is.NoErr(cf.Register("field", func() CallImplementation { return &stubCall{} }))
	return cf
}

// stubCall is a no-op CallImplementation used where tests only care about
// graph shape, not evaluation semantics.
type stubCall struct{ BaseCall }

func TestParseCallAndLiteralArgs(t *testing.T) {
	is := is.New(t)
	cf := testFactory(t)

	node, err := Parse(`(and 1 'x' [1 2] null)`, cf, "test:1")
	is.NoErr(err)
	is.True(node.IsCall())
	is.Equal(node.Name(), "and")
	is.Equal(len(node.Children()), 4)
	is.True(node.Children()[0].Literal().Equal(NumberValue(1)))
	is.True(node.Children()[1].Literal().Equal(StringValue("x")))
	is.True(node.Children()[2].Literal().Equal(ListValue([]Value{NumberValue(1), NumberValue(2)})))
	is.True(node.Children()[3].Literal().IsNull())
}

func TestParseUnknownCall(t *testing.T) {
	is := is.New(t)
	cf := testFactory(t)

	_, err := Parse(`(nope 1)`, cf, "test:1")
	is.True(err != nil)
	var uce *UnknownCallError
	is.True(errors.As(err, &uce))
	is.Equal(uce.Name, "nope")
	is.True(errors.Is(err, ErrUnknownCall))
}

func TestParseTrailingByteQuirk(t *testing.T) {
	is := is.New(t)
	cf := testFactory(t)

	// Exactly one leftover byte is tolerated.
	_, err := Parse(`(field 'x')!`, cf, "test:1")
	is.NoErr(err)

	// Two or more leftover bytes are rejected.
	_, err = Parse(`(field 'x')!!`, cf, "test:1")
	is.True(err != nil)
	var pe *ParseError
	is.True(errors.As(err, &pe))
	is.True(errors.Is(err, ErrParse))
}

func TestParseErrorExcerptWindow(t *testing.T) {
	is := is.New(t)
	cf := testFactory(t)

	_, err := Parse(`(and `, cf, "test:1")
	is.True(err != nil)
	var pe *ParseError
	is.True(errors.As(err, &pe))
	is.Equal(pe.Origin, "test:1")
	is.Equal(pe.Offset, 5)                   // end of input
	is.Equal(pe.Excerpt, "(and  --ERROR-- ") // up to 10 bytes before, none left after
}
