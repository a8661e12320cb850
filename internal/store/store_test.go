package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/sharpindex/internal/graph"
	"github.com/standardbeagle/sharpindex/internal/types"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIsEmptyOnFreshStore(t *testing.T) {
	s := openTemp(t)
	empty, err := s.IsEmpty()
	require.NoError(t, err)
	require.True(t, empty)
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	s := openTemp(t)

	n := graph.Node{
		Handle: 1,
		Symbol: "Widget",
		Kind:   types.KindClassDef,
		Role:   types.RoleDefinition,
		Location: types.Location{
			File: "Widget.cs", StartLine: 1, StartChar: 0, EndLine: 5, EndChar: 1,
		},
		Domain: types.DomainSource,
	}
	require.NoError(t, s.WriteNode(n))

	n2 := graph.Node{Handle: 2, Symbol: "Acme", Kind: types.KindNamespaceDecl, Role: types.RoleDefinition, Domain: types.DomainSource}
	require.NoError(t, s.WriteNode(n2))

	require.NoError(t, s.WriteEdge(graph.Edge{Src: 2, Dst: 1, Precedence: types.PrecedenceContainment}))
	require.NoError(t, s.WriteEdge(graph.Edge{Src: 1, Dst: 2, Precedence: types.PrecedenceFQDN}))
	require.NoError(t, s.WriteFile("Widget.cs", "abc123", types.DomainSource))

	empty, err := s.IsEmpty()
	require.NoError(t, err)
	require.False(t, empty)

	hash, ok, err := s.FileHash("Widget.cs")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", hash)

	nodes, edges, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Len(t, edges, 2)
}

func TestFileHashMissingReturnsNotFound(t *testing.T) {
	s := openTemp(t)
	_, ok, err := s.FileHash("Nope.cs")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWriteEdgeIsIdempotent(t *testing.T) {
	s := openTemp(t)
	e := graph.Edge{Src: 1, Dst: 2, Precedence: types.PrecedenceContainment}
	require.NoError(t, s.WriteEdge(e))
	require.NoError(t, s.WriteEdge(e))

	_, edges, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestPurgeFileRemovesNodesEdgesAndFileRow(t *testing.T) {
	s := openTemp(t)

	n1 := graph.Node{Handle: 1, Symbol: "Acme", Kind: types.KindNamespaceDecl, Role: types.RoleDefinition, Location: types.Location{File: "A.cs"}, Domain: types.DomainSource}
	n2 := graph.Node{Handle: 2, Symbol: "Widget", Kind: types.KindClassDef, Role: types.RoleDefinition, Location: types.Location{File: "A.cs"}, Domain: types.DomainSource}
	n3 := graph.Node{Handle: 3, Symbol: "Other", Kind: types.KindClassDef, Role: types.RoleDefinition, Location: types.Location{File: "B.cs"}, Domain: types.DomainSource}

	require.NoError(t, s.WriteNode(n1))
	require.NoError(t, s.WriteNode(n2))
	require.NoError(t, s.WriteNode(n3))
	require.NoError(t, s.WriteEdge(graph.Edge{Src: 1, Dst: 2, Precedence: types.PrecedenceContainment}))
	require.NoError(t, s.WriteEdge(graph.Edge{Src: 2, Dst: 3, Precedence: types.PrecedenceContainment}))
	require.NoError(t, s.WriteFile("A.cs", "hash-a", types.DomainSource))
	require.NoError(t, s.WriteFile("B.cs", "hash-b", types.DomainSource))

	require.NoError(t, s.PurgeFile("A.cs"))

	nodes, edges, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "Other", nodes[0].Symbol)
	require.Empty(t, edges)

	_, ok, err := s.FileHash("A.cs")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.FileHash("B.cs")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWritePartialPath(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.WritePartialPath(1, "Acme.Widgets"))
	require.NoError(t, s.WritePartialPath(1, "Acme.Widgets.Widget"))
}
