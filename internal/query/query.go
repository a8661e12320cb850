// Package query implements C6: the five-phase algorithm that turns a
// compiled pattern into an ordered list of result records against a
// snapshot of the symbol graph.
package query

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/standardbeagle/sharpindex/internal/csharperrors"
	"github.com/standardbeagle/sharpindex/internal/graph"
	"github.com/standardbeagle/sharpindex/internal/pattern"
	"github.com/standardbeagle/sharpindex/internal/types"
)

// maxHops bounds precedence-10 traversal. spec.md's own invariant
// guarantees termination in at most 3 hops for well-formed graphs; this
// is deliberately one hop looser so a borderline-but-legal graph isn't
// punished, while still catching genuinely malformed ones.
const maxHops = 4

// Request is the input to Find.
type Request struct {
	Pattern      *pattern.Compiled
	DomainFilter types.DomainFilter
	PathFilter   map[string]bool // nil means unrestricted
	LocationKind types.LocationKind
}

// Engine runs queries against one graph. It holds no mutable state of
// its own — spec.md's "state machine: none" — and is safe to share
// across concurrent Find calls.
type Engine struct {
	g *graph.Graph
}

// New binds an Engine to a graph snapshot.
func New(g *graph.Graph) *Engine {
	return &Engine{g: g}
}

// candidate is one node considered during phase A, together with the
// FQDNs phase B/D reconstructed for it — a definition node yields
// exactly one; a bare type reference can yield several competing
// definitions to disambiguate in phase E.
type candidate struct {
	handle types.NodeHandle
	node   graph.Node
	fqdns  []types.FQDN
}

// Find runs the five-phase algorithm and returns result records sorted
// by (file_uri, start_line, start_char).
func (e *Engine) Find(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	candidates, err := e.phaseA(req)
	if err != nil {
		return nil, err
	}

	results := make([]types.ResultRecord, 0, len(candidates))

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, csharperrors.Cancelled
		}

		fqdns, err := e.phaseB(c.node)
		if err != nil {
			// MalformedGraph: skip this candidate, keep going.
			continue
		}
		c.fqdns = fqdns

		c.fqdns = e.phaseD(c.node, c.fqdns)

		survivors := e.phaseC(req.Pattern, c.fqdns)
		if len(survivors) == 0 {
			continue
		}

		survivors = e.phaseE(c.node, survivors)

		for _, f := range survivors {
			results = append(results, types.ResultRecord{
				FileURI:    toFileURI(c.node.Location.File),
				StartLine:  c.node.Location.StartLine,
				StartChar:  c.node.Location.StartChar,
				EndLine:    c.node.Location.EndLine,
				EndChar:    c.node.Location.EndChar,
				FQDNString: f.String(),
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FileURI != b.FileURI {
			return a.FileURI < b.FileURI
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.StartChar < b.StartChar
	})

	return results, nil
}

// phaseA enumerates candidate nodes per spec.md §4.6 phase A.
func (e *Engine) phaseA(req Request) ([]candidate, error) {
	handles := e.g.AllNodesWithSymbol()

	out := make([]candidate, 0, len(handles))
	for _, h := range handles {
		n, ok := e.g.Node(h)
		if !ok || n.Symbol == "" {
			continue
		}
		if !req.DomainFilter.Allows(n.Domain) {
			continue
		}
		if req.PathFilter != nil && !req.PathFilter[n.Location.File] {
			continue
		}
		if !locationCompatible(n.Kind, n.Role, req.LocationKind) {
			continue
		}
		if !req.Pattern.MatchSymbol(symbolTail(n.Symbol)) {
			continue
		}
		out = append(out, candidate{handle: h, node: n})
	}
	return out, nil
}

func locationCompatible(kind types.SyntaxKind, role types.Role, loc types.LocationKind) bool {
	switch loc {
	case types.LocationNamespace:
		return kind == types.KindNamespaceDecl || kind == types.KindImport
	case types.LocationClass:
		return kind == types.KindClassDef
	case types.LocationMethod:
		return kind == types.KindMethodName
	case types.LocationField:
		return kind == types.KindFieldName || (kind == types.KindName && role == types.RoleReference)
	case types.LocationAll:
		return true
	default:
		return false
	}
}

// symbolTail returns the text after a symbol's final '.', or the whole
// symbol if it has none — the "last segment behavior" referenced for
// member-access reference candidates in spec.md §4.6 phase A(iv).
func symbolTail(symbol string) string {
	idx := strings.LastIndex(symbol, ".")
	if idx < 0 {
		return symbol
	}
	return symbol[idx+1:]
}

// phaseB reconstructs the FQDN(s) of a candidate. Plain definitions (and
// import nodes) get exactly one, built by seeding a slot from the
// candidate itself and then walking outgoing precedence-10 edges
// upward. Bare type references (object_creation/local-var type
// mentions — class_def nodes with role=reference) have no lexical
// identity of their own: their true identity is external, so this
// looks up every class_def *definition* sharing the reference's symbol
// and reconstructs an FQDN from each — the fan-out phase E later
// disambiguates via imports.
func (e *Engine) phaseB(n graph.Node) ([]types.FQDN, error) {
	if n.Role == types.RoleReference && n.Kind == types.KindClassDef && !strings.Contains(n.Symbol, ".") {
		return e.phaseBReferenceLookup(n.Symbol)
	}

	fqdn, err := e.walkAncestors(n)
	if err != nil {
		return nil, err
	}
	return []types.FQDN{fqdn}, nil
}

func (e *Engine) phaseBReferenceLookup(symbol string) ([]types.FQDN, error) {
	var out []types.FQDN
	for _, h := range e.g.NodesByKind(types.KindClassDef) {
		def, ok := e.g.Node(h)
		if !ok || def.Role != types.RoleDefinition || def.Symbol != symbol {
			continue
		}
		fqdn, err := e.walkAncestors(def)
		if err != nil {
			continue
		}
		out = append(out, fqdn)
	}
	if len(out) == 0 {
		out = append(out, types.FQDN{Class: symbol})
	}
	return out, nil
}

// FQDNOf exposes walkAncestors for callers outside this package that need
// a definition node's fully-qualified name without going through Find —
// internal/indexer uses it to compute the dotted prefixes it persists as
// partial-path segments right after a file's front-end populates the graph.
func (e *Engine) FQDNOf(n graph.Node) (types.FQDN, error) {
	return e.walkAncestors(n)
}

// walkAncestors seeds an FQDN from n's own kind, then follows outgoing
// precedence-10 edges, filling whichever slot each hop's sink kind maps
// to, until no more such edges exist or the depth bound is exceeded.
func (e *Engine) walkAncestors(n graph.Node) (types.FQDN, error) {
	var fqdn types.FQDN
	seedSlot(&fqdn, n.Kind, n.Symbol)

	current := n.Handle
	visited := map[types.NodeHandle]bool{n.Handle: true}

	for hops := 0; ; hops++ {
		edges := e.g.OutgoingByPrecedence(current, types.PrecedenceFQDN)
		if len(edges) == 0 {
			return fqdn, nil
		}
		if hops >= maxHops {
			return fqdn, csharperrors.NewMalformedGraph("precedence-10 traversal exceeded depth bound")
		}

		next := edges[0].Dst
		if visited[next] {
			return fqdn, csharperrors.NewMalformedGraph("precedence-10 cycle detected")
		}
		visited[next] = true

		sink, ok := e.g.Node(next)
		if !ok {
			return fqdn, nil
		}
		applySlot(&fqdn, sink.Kind, sink.Symbol)
		current = next
	}
}

func seedSlot(fqdn *types.FQDN, kind types.SyntaxKind, symbol string) {
	switch kind {
	case types.KindNamespaceDecl, types.KindImport:
		fqdn.Namespace = symbol
	case types.KindClassDef:
		fqdn.Class = symbol
	case types.KindMethodName:
		fqdn.Member = symbol
		fqdn.MemberKind = types.KindMethodName
	case types.KindFieldName:
		fqdn.Member = symbol
		fqdn.MemberKind = types.KindFieldName
	}
}

// applySlot fills a slot only if empty: the innermost ancestor of a
// given kind wins over any further-out namesake (nested namespaces or
// classes collapse to their innermost segment).
func applySlot(fqdn *types.FQDN, kind types.SyntaxKind, symbol string) {
	switch kind {
	case types.KindNamespaceDecl:
		if fqdn.Namespace == "" {
			fqdn.Namespace = symbol
		}
	case types.KindClassDef:
		if fqdn.Class == "" {
			fqdn.Class = symbol
		}
	case types.KindMethodName:
		if fqdn.Member == "" {
			fqdn.Member = symbol
			fqdn.MemberKind = types.KindMethodName
		}
	case types.KindFieldName:
		if fqdn.Member == "" {
			fqdn.Member = symbol
			fqdn.MemberKind = types.KindFieldName
		}
	}
}

// phaseC filters FQDNs by namespace and (defensively) symbol match.
func (e *Engine) phaseC(p *pattern.Compiled, fqdns []types.FQDN) []types.FQDN {
	var out []types.FQDN
	for _, f := range fqdns {
		if !p.MatchNamespace(fqdnPrefix(f)) {
			continue
		}
		if !p.MatchSymbol(fqdnTail(f)) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// fqdnTail returns the bare-symbol segment fqdnPrefix's dotted prefix
// leads up to. A namespace_decl/import candidate (Class and Member both
// empty) has no such segment of its own — its whole dotted name is the
// prefix a trailing-wildcard pattern's tail matches trivially against.
func fqdnTail(f types.FQDN) string {
	if f.Member != "" {
		return f.Member
	}
	if f.Class != "" {
		return f.Class
	}
	return ""
}

// fqdnPrefix returns everything before fqdnTail's segment, dotted — the
// counterpart a pattern's own prefixParts is matched against. A method
// or field's prefix is namespace *and* class, not namespace alone. A
// bare namespace/import candidate has no separate tail segment, so its
// entire (possibly multi-segment) namespace is the prefix.
func fqdnPrefix(f types.FQDN) string {
	if f.Class == "" && f.Member == "" {
		return f.Namespace
	}
	var parts []string
	for _, p := range []string{f.Namespace, f.Class, f.Member} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts[:len(parts)-1], ".")
}

// phaseD resolves member-access reference candidates ("accessor.accessed")
// to the definition they name, per spec.md §4.6 phase D. Non-member-access
// candidates pass through unchanged.
func (e *Engine) phaseD(n graph.Node, fqdns []types.FQDN) []types.FQDN {
	if n.Kind != types.KindName || n.Role != types.RoleReference {
		return fqdns
	}
	parts := strings.SplitN(n.Symbol, ".", 2)
	if len(parts) != 2 {
		return fqdns
	}
	accessor, accessed := parts[0], parts[1]

	if resolved, ok := e.resolveMemberAccess(n, accessor, accessed); ok {
		fqdn, err := e.walkAncestors(resolved)
		if err == nil {
			return []types.FQDN{fqdn}
		}
	}
	return fqdns
}

// resolveMemberAccess implements phase D's two-step lookup: try accessor
// as a local variable's declared type first, then as a bare type name.
func (e *Engine) resolveMemberAccess(n graph.Node, accessor, accessed string) (graph.Node, bool) {
	if typeName, ok := e.localVarType(n.Location.File, accessor); ok {
		if member, ok := e.typeMember(typeName, accessed); ok {
			return member, true
		}
	}
	return e.typeMember(accessor, accessed)
}

func (e *Engine) localVarType(file, name string) (string, bool) {
	for _, h := range e.g.NodesByFile(file) {
		n, ok := e.g.Node(h)
		if !ok || n.Kind != types.KindLocalVar || n.Symbol != name {
			continue
		}
		for _, edge := range e.g.OutgoingByPrecedence(h, types.PrecedenceContainment) {
			sink, ok := e.g.Node(edge.Dst)
			if ok && sink.Kind == types.KindClassDef && sink.Role == types.RoleReference {
				return sink.Symbol, true
			}
		}
	}
	return "", false
}

// typeMember finds a class_def definition named typeName and, among its
// precedence-0 children, a field_name or method_name named member.
func (e *Engine) typeMember(typeName, member string) (graph.Node, bool) {
	for _, h := range e.g.NodesByKind(types.KindClassDef) {
		def, ok := e.g.Node(h)
		if !ok || def.Role != types.RoleDefinition || def.Symbol != typeName {
			continue
		}
		for _, edge := range e.g.OutgoingByPrecedence(h, types.PrecedenceContainment) {
			child, ok := e.g.Node(edge.Dst)
			if !ok || child.Symbol != member {
				continue
			}
			if child.Kind == types.KindFieldName || child.Kind == types.KindMethodName {
				return child, true
			}
		}
	}
	return graph.Node{}, false
}

// phaseE disambiguates multiple surviving FQDNs for the same candidate
// occurrence using file-local imports, per spec.md §4.6 phase E.
func (e *Engine) phaseE(n graph.Node, fqdns []types.FQDN) []types.FQDN {
	if len(fqdns) <= 1 {
		return fqdns
	}

	imports := make(map[string]bool)
	for _, h := range e.g.NodesByFile(n.Location.File) {
		imp, ok := e.g.Node(h)
		if ok && imp.Kind == types.KindImport {
			imports[imp.Symbol] = true
		}
	}

	var matches []types.FQDN
	for _, f := range fqdns {
		if imports[f.Namespace] {
			matches = append(matches, f)
		}
	}
	if len(matches) == 1 {
		return matches
	}
	return fqdns
}

func toFileURI(relPath string) string {
	return "file://" + filepath.ToSlash(relPath)
}
