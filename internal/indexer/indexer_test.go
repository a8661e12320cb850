package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/sharpindex/internal/config"
	"github.com/standardbeagle/sharpindex/internal/graph"
	"github.com/standardbeagle/sharpindex/internal/types"
)

// TestMain ensures the worker-pool fan-out in indexPaths leaves no
// goroutines running after Index returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memBacking is an in-memory graph.Backing used so these tests exercise
// discovery, dispatch, and hash short-circuiting without a real sqlite
// file on disk.
type memBacking struct {
	nodes        map[types.NodeHandle]graph.Node
	edges        []graph.Edge
	files        map[string]string   // path -> content hash
	partialPaths map[types.NodeHandle][]string
}

func newMemBacking() *memBacking {
	return &memBacking{
		nodes:        make(map[types.NodeHandle]graph.Node),
		files:        make(map[string]string),
		partialPaths: make(map[types.NodeHandle][]string),
	}
}

func (m *memBacking) IsEmpty() (bool, error) { return len(m.files) == 0, nil }
func (m *memBacking) WriteNode(n graph.Node) error {
	m.nodes[n.Handle] = n
	return nil
}
func (m *memBacking) WriteEdge(e graph.Edge) error {
	m.edges = append(m.edges, e)
	return nil
}
func (m *memBacking) WriteFile(path, hash string, d types.Domain) error {
	m.files[path] = hash
	return nil
}
func (m *memBacking) FileHash(path string) (string, bool, error) {
	h, ok := m.files[path]
	return h, ok, nil
}
func (m *memBacking) WritePartialPath(h types.NodeHandle, segment string) error {
	m.partialPaths[h] = append(m.partialPaths[h], segment)
	return nil
}
func (m *memBacking) PurgeFile(path string) error {
	delete(m.files, path)
	return nil
}
func (m *memBacking) LoadAll() ([]graph.Node, []graph.Edge, error) {
	nodes := make([]graph.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	return nodes, m.edges, nil
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestIndexDiscoversXMLDocFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/Widgets.xml", `<?xml version="1.0"?>
<doc>
  <members>
    <member name="T:Acme.Widgets.Widget">
      <summary>A widget.</summary>
    </member>
  </members>
</doc>`)
	writeFile(t, dir, "bin/ignored.xml", `<doc></doc>`)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	cfg.Index.Include = []string{"**/*.xml"}

	backing := newMemBacking()
	idx, g, err := Open(cfg, backing)
	require.NoError(t, err)

	report, err := idx.Index(context.Background(), dir, types.DomainDependency)
	require.NoError(t, err)
	require.Equal(t, 1, report.FilesIndexed)
	require.Empty(t, report.Errors)

	found := false
	for _, h := range g.NodesByKind(types.KindClassDef) {
		n, _ := g.Node(h)
		if n.Symbol == "Widget" {
			found = true
		}
	}
	require.True(t, found, "expected a class_def node named Widget")
}

func TestIndexSkipsExcludedPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "obj/Generated.xml", `<doc></doc>`)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	cfg.Index.Include = []string{"**/*.xml"}

	backing := newMemBacking()
	idx, _, err := Open(cfg, backing)
	require.NoError(t, err)

	report, err := idx.Index(context.Background(), dir, types.DomainDependency)
	require.NoError(t, err)
	require.Equal(t, 0, report.FilesIndexed)
}

// TestIndexPersistsPartialPathSegments confirms Index computes and writes
// each definition node's dotted FQDN prefixes to the backing store (spec.md
// §4.5 step 4), rather than leaving the PartialPaths table unpopulated.
func TestIndexPersistsPartialPathSegments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Widgets.xml", `<doc><members><member name="M:Acme.Widgets.Widget.Dispose"></member></members></doc>`)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	cfg.Index.Include = []string{"**/*.xml"}

	backing := newMemBacking()
	idx, g, err := Open(cfg, backing)
	require.NoError(t, err)

	_, err = idx.Index(context.Background(), dir, types.DomainDependency)
	require.NoError(t, err)

	var methodHandle types.NodeHandle
	for _, h := range g.NodesByKind(types.KindMethodName) {
		n, _ := g.Node(h)
		if n.Symbol == "Dispose" {
			methodHandle = h
		}
	}
	require.NotZero(t, methodHandle)

	require.Equal(t, []string{
		"Acme",
		"Acme.Widgets",
		"Acme.Widgets.Widget",
		"Acme.Widgets.Widget.Dispose",
	}, backing.partialPaths[methodHandle])
}

func TestReindexPurgesRemovedFile(t *testing.T) {
	dir := t.TempDir()
	const rel = "Widgets.xml"
	writeFile(t, dir, rel, `<doc><members><member name="T:Acme.Widget"></member></members></doc>`)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	cfg.Index.Include = []string{"**/*.xml"}

	backing := newMemBacking()
	idx, _, err := Open(cfg, backing)
	require.NoError(t, err)

	_, err = idx.Index(context.Background(), dir, types.DomainDependency)
	require.NoError(t, err)
	_, ok, _ := backing.FileHash(rel)
	require.True(t, ok)

	require.NoError(t, os.Remove(filepath.Join(dir, rel)))

	report, err := idx.Reindex(context.Background(), dir, []string{rel}, types.DomainDependency)
	require.NoError(t, err)
	require.Equal(t, 0, report.FilesIndexed)

	_, ok, _ = backing.FileHash(rel)
	require.False(t, ok)
}

// TestReindexSkipsUnchangedContent guards against purging a file's graph
// entries before checking whether its content actually changed: doing so
// would erase the very hash record indexOne's short-circuit needs, making
// it unreachable through Reindex.
func TestReindexSkipsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	const rel = "Widgets.xml"
	writeFile(t, dir, rel, `<doc><members><member name="T:Acme.Widget"></member></members></doc>`)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	cfg.Index.Include = []string{"**/*.xml"}

	backing := newMemBacking()
	idx, g, err := Open(cfg, backing)
	require.NoError(t, err)

	_, err = idx.Index(context.Background(), dir, types.DomainDependency)
	require.NoError(t, err)
	before := append([]types.NodeHandle(nil), g.NodesByFile(rel)...)
	require.NotEmpty(t, before)

	report, err := idx.Reindex(context.Background(), dir, []string{rel}, types.DomainDependency)
	require.NoError(t, err)
	require.Equal(t, 1, report.FilesIndexed)

	after := g.NodesByFile(rel)
	require.ElementsMatch(t, before, after, "unchanged content should leave the file's nodes untouched, not purge and recreate them")
}

// TestReindexReprocessesChangedFile confirms a real content change still
// purges and rebuilds the file's graph entries.
func TestReindexReprocessesChangedFile(t *testing.T) {
	dir := t.TempDir()
	const rel = "Widgets.xml"
	writeFile(t, dir, rel, `<doc><members><member name="T:Acme.Widget"></member></members></doc>`)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	cfg.Index.Include = []string{"**/*.xml"}

	backing := newMemBacking()
	idx, g, err := Open(cfg, backing)
	require.NoError(t, err)

	_, err = idx.Index(context.Background(), dir, types.DomainDependency)
	require.NoError(t, err)

	writeFile(t, dir, rel, `<doc><members><member name="T:Acme.Gadget"></member></members></doc>`)

	report, err := idx.Reindex(context.Background(), dir, []string{rel}, types.DomainDependency)
	require.NoError(t, err)
	require.Equal(t, 1, report.FilesIndexed)

	require.Contains(t, classDefSymbols(g), "Gadget")
	require.NotContains(t, classDefSymbols(g), "Widget")
}

func classDefSymbols(g *graph.Graph) []string {
	var out []string
	for _, h := range g.NodesByKind(types.KindClassDef) {
		n, _ := g.Node(h)
		out = append(out, n.Symbol)
	}
	return out
}

func TestFrontendForExtensions(t *testing.T) {
	require.Equal(t, "rules", frontendFor("Foo.cs"))
	require.Equal(t, "xmldoc", frontendFor("Foo.xml"))
	require.Equal(t, "", frontendFor("Foo.txt"))
}
