package intern_test

import (
	"testing"

	"github.com/mna/rustlox/lang/intern"
	"github.com/stretchr/testify/require"
)

func TestInternSameBytesSameHandle(t *testing.T) {
	in := intern.New()
	h1 := in.Intern("foo")
	h2 := in.Intern("foo")
	require.Equal(t, h1, h2)
}

func TestInternDistinctBytesDistinctHandle(t *testing.T) {
	in := intern.New()
	h1 := in.Intern("foo")
	h2 := in.Intern("bar")
	require.NotEqual(t, h1, h2)
}

func TestAsRoundTrips(t *testing.T) {
	in := intern.New()
	h := in.Intern("hello")
	require.Equal(t, "hello", in.As(h))
}

func TestConcatInterns(t *testing.T) {
	in := intern.New()
	a := in.Intern("foo")
	b := in.Intern("bar")
	c := in.Concat(a, b)
	require.Equal(t, "foobar", in.As(c))
	require.Equal(t, c, in.Intern("foobar"))
}

func TestInstancesAreIsolated(t *testing.T) {
	a := intern.New()
	b := intern.New()
	ha := a.Intern("x")
	hb := b.Intern("x")
	require.Equal(t, ha, hb) // same assignment order, but from different tables
	require.Equal(t, "x", a.As(ha))
	require.Equal(t, "x", b.As(hb))
}
