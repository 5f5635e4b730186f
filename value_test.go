package predicate

import (
	"testing"

	"github.com/matryer/is"
)

func TestValueTruthy(t *testing.T) {
	is := is.New(t)

	is.True(!Null.Truthy())
	is.True(!NumberValue(0).Truthy())
	is.True(NumberValue(1).Truthy())
	is.True(!StringValue("").Truthy())
	is.True(StringValue("x").Truthy())
	is.True(!ByteStringValue(nil).Truthy())
	is.True(ByteStringValue([]byte{0}).Truthy())
	is.True(!ListValue(nil).Truthy())
	is.True(ListValue([]Value{Null}).Truthy())
}

func TestValueEqual(t *testing.T) {
	is := is.New(t)

	is.True(NumberValue(1).Equal(NumberValue(1)))
	is.True(!NumberValue(1).Equal(NumberValue(2)))
	is.True(!NumberValue(1).Equal(StringValue("1")))
	is.True(StringValue("a").Equal(StringValue("a")))
	is.True(ListValue([]Value{NumberValue(1), StringValue("a")}).
		Equal(ListValue([]Value{NumberValue(1), StringValue("a")})))
	is.True(!ListValue([]Value{NumberValue(1)}).Equal(ListValue([]Value{NumberValue(1), NumberValue(2)})))
}

func TestValueStringRoundTrip(t *testing.T) {
	is := is.New(t)
	cf := NewCallFactory()

	for _, v := range []Value{
		Null,
		NumberValue(3.5),
		NumberValue(-2),
		StringValue("hello world"),
		StringValue("it's"),
		ByteStringValue([]byte("raw")),
		ListValue([]Value{NumberValue(1), StringValue("x")}),
	} {
		text := v.String()
		node, err := Parse(text, cf, "test")
		is.NoErr(err)
		is.True(node.IsLiteral())
		is.True(node.Literal().Equal(v))
	}
}
