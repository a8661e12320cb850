// Package xmldoc implements C4, the alternate front-end that produces
// symbol-graph nodes from SDK documentation XML instead of source text.
// It streams <member name="K:Dotted.Symbol.Path"> records with the
// standard library's encoding/xml decoder — no XML library appears
// anywhere in the retrieval pack, so this is the one front-end grounded
// on stdlib rather than an ecosystem dependency.
package xmldoc

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/standardbeagle/sharpindex/internal/csharperrors"
	"github.com/standardbeagle/sharpindex/internal/graph"
	"github.com/standardbeagle/sharpindex/internal/types"
)

// Env carries the globals C5 binds before a documentation file's scan.
type Env struct {
	FilePath string
	Domain   types.Domain
}

// Analyzer holds no state of its own; it exists to mirror the Engine
// shape of internal/rules and give the indexer a uniform front-end
// interface.
type Analyzer struct{}

// New constructs an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// levelCache dedups namespace_decl/class_def nodes shared by multiple
// <member> records within one documentation file.
type levelCache struct {
	g       *graph.Graph
	env     Env
	handles map[string]types.NodeHandle
}

// node returns the cached handle for a node identified by its full dotted
// path (fqdn), creating one with the given leaf symbol text if this is the
// first time fqdn has been seen. Caching on the leaf symbol alone would
// collide two different classes/members that merely share a bare name
// (e.g. "Acme.Widgets.Widget.Dispose" and "Acme.Helpers.Helper.Dispose"
// both named "Dispose"), handing them the same node and, for members, a
// second outgoing FQDN edge from a second class — fqdn keeps every
// distinct symbol on its own node regardless of name reuse.
func (c *levelCache) node(kind types.SyntaxKind, symbol, fqdn string) (types.NodeHandle, bool) {
	key := string(kind) + "\x00" + fqdn
	if h, ok := c.handles[key]; ok {
		return h, false
	}
	h := c.g.AddNode(types.NodeAttrs{
		Symbol: symbol,
		Kind:   kind,
		Role:   types.RoleDefinition,
		Location: types.Location{
			File: c.env.FilePath,
		},
		Domain: c.env.Domain,
	})
	c.handles[key] = h
	return h, true
}

// Run decodes r as an XML document and emits the node/edge structure of
// spec.md §4.4's member-kind table. Non-<member> markup is ignored.
func (a *Analyzer) Run(g *graph.Graph, env Env, r io.Reader) error {
	cache := &levelCache{g: g, env: env, handles: make(map[string]types.NodeHandle)}
	decoder := xml.NewDecoder(r)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return csharperrors.NewParseError(env.FilePath, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "member" {
			continue
		}

		name := attrValue(start, "name")
		if len(name) < 2 || name[1] != ':' {
			continue
		}
		emitMember(cache, name[0], name[2:])
	}
	return nil
}

func attrValue(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func emitMember(cache *levelCache, kind byte, path string) {
	switch kind {
	case 'N':
		cache.node(types.KindNamespaceDecl, path, path)

	case 'T':
		ns, leaf := splitLast(path)
		classHandle, _ := cache.node(types.KindClassDef, leaf, path)
		linkPrefix(cache, ns, classHandle)

	case 'M':
		path = stripParameterList(path)
		emitMember3(cache, path, types.KindMethodName)

	case 'F', 'P':
		emitMember3(cache, path, types.KindFieldName)
	}
}

// emitMember3 handles the shared M/F/P shape: last segment is the member,
// the segment before that is the class, everything else is the namespace.
func emitMember3(cache *levelCache, path string, memberKind types.SyntaxKind) {
	rest, member := splitLast(path)
	namespace, class := splitLast(rest)

	memberHandle, _ := cache.node(memberKind, member, path)
	classHandle, isNewClass := cache.node(types.KindClassDef, class, rest)
	cache.g.AddContainment(classHandle, memberHandle)
	if isNewClass {
		linkPrefix(cache, namespace, classHandle)
	}
}

// linkPrefix ensures the dotted namespace prefix exists as a
// namespace_decl node and links it to child via containment+FQDN edges.
func linkPrefix(cache *levelCache, namespace string, child types.NodeHandle) {
	if namespace == "" {
		return
	}
	nsHandle, _ := cache.node(types.KindNamespaceDecl, namespace, namespace)
	cache.g.AddContainment(nsHandle, child)
}

// splitLast splits dotted on its final '.', returning ("", dotted) if
// there is none.
func splitLast(dotted string) (prefix, last string) {
	idx := strings.LastIndex(dotted, ".")
	if idx < 0 {
		return "", dotted
	}
	return dotted[:idx], dotted[idx+1:]
}

// stripParameterList removes a trailing "(...)" parameter list from an
// M-kind path before the last segment is taken as the method name.
func stripParameterList(path string) string {
	if idx := strings.IndexByte(path, '('); idx >= 0 {
		return path[:idx]
	}
	return path
}
