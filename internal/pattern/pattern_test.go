package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileRejectsEmptyPatternAndSegments(t *testing.T) {
	_, err := Compile("")
	require.Error(t, err)

	_, err = Compile("Acme..Widget")
	require.Error(t, err)

	_, err = Compile(".Acme")
	require.Error(t, err)

	_, err = Compile("Acme.")
	require.Error(t, err)
}

func TestMatchNamespaceExactSegments(t *testing.T) {
	c, err := Compile("Acme.Widgets.Widget")
	require.NoError(t, err)

	require.True(t, c.MatchNamespace("Acme.Widgets"))
	require.False(t, c.MatchNamespace("Acme"))
	require.False(t, c.MatchNamespace("Acme.Widgets.Extra"))
	require.False(t, c.MatchNamespace("Other.Widgets"))
}

func TestMatchNamespaceWildcardSegment(t *testing.T) {
	c, err := Compile("Acme.*.Widget")
	require.NoError(t, err)

	require.True(t, c.MatchNamespace("Acme.Widgets"))
	require.True(t, c.MatchNamespace("Acme.Gadgets"))
	require.False(t, c.MatchNamespace("Acme.Widgets.Sub"))
}

func TestMatchSymbolLiteralAndWildcard(t *testing.T) {
	c, err := Compile("Acme.Widget")
	require.NoError(t, err)
	require.True(t, c.MatchSymbol("Widget"))
	require.False(t, c.MatchSymbol("Gadget"))

	wc, err := Compile("Acme.*")
	require.NoError(t, err)
	require.True(t, wc.MatchSymbol("AnythingAtAll"))
}

func TestMatchNamespaceEmptyPrefixOnlyMatchesEmptyDotted(t *testing.T) {
	c, err := Compile("Widget")
	require.NoError(t, err)
	require.True(t, c.MatchNamespace(""))
	require.False(t, c.MatchNamespace("Acme"))
}

func TestPartialNamespacePrefixCheck(t *testing.T) {
	c, err := Compile("Acme.Widgets.Widget")
	require.NoError(t, err)

	require.True(t, c.PartialNamespace(""))
	require.True(t, c.PartialNamespace("Acme"))
	require.True(t, c.PartialNamespace("Acme.Widgets"))
	require.False(t, c.PartialNamespace("Other"))
	require.False(t, c.PartialNamespace("Acme.Widgets.TooDeep"))
}

func TestStringReturnsOriginalPattern(t *testing.T) {
	c, err := Compile("Acme.*.Widget")
	require.NoError(t, err)
	require.Equal(t, "Acme.*.Widget", c.String())
}
