// Package graph implements the persistent, append-mostly directed symbol
// graph of spec.md §3/§4.2: nodes tagged by syntax kind, containment
// edges (precedence 0), and FQDN back-reference edges (precedence 10).
// Iteration is deterministic everywhere, which the query engine's output
// ordering depends on.
package graph

import (
	"sort"
	"sync"

	"github.com/standardbeagle/sharpindex/internal/types"
)

// Node is one symbol-graph entity.
type Node struct {
	Handle   types.NodeHandle
	Symbol   string
	Kind     types.SyntaxKind
	Role     types.Role
	Location types.Location
	Domain   types.Domain
}

// Edge is a directed pair with a precedence class.
type Edge struct {
	Src        types.NodeHandle
	Dst        types.NodeHandle
	Precedence int
}

// Backing is the persistence contract a Graph can save to and rehydrate
// from. internal/store implements this against sqlite.
type Backing interface {
	IsEmpty() (bool, error)
	WriteNode(n Node) error
	WriteEdge(e Edge) error
	WriteFile(path string, contentHash string, domain types.Domain) error
	WritePartialPath(node types.NodeHandle, segment string) error
	PurgeFile(path string) error
	LoadAll() (nodes []Node, edges []Edge, err error)
}

// Graph is the in-memory symbol graph, guarded for the concurrent-reader
// / single-writer discipline of spec.md §5.
type Graph struct {
	mu sync.RWMutex

	nextHandle types.NodeHandle
	nodes      map[types.NodeHandle]*Node
	outEdges   map[types.NodeHandle][]Edge

	byFile map[string][]types.NodeHandle
	byKind map[types.SyntaxKind][]types.NodeHandle

	rootHandle    types.NodeHandle
	domainHandles map[types.Domain]types.NodeHandle
}

// New creates an empty graph with its fixed root node already inserted.
func New() *Graph {
	g := &Graph{
		nodes:         make(map[types.NodeHandle]*Node),
		outEdges:      make(map[types.NodeHandle][]Edge),
		byFile:        make(map[string][]types.NodeHandle),
		byKind:        make(map[types.SyntaxKind][]types.NodeHandle),
		domainHandles: make(map[types.Domain]types.NodeHandle),
	}
	g.rootHandle = g.addNodeLocked(types.NodeAttrs{
		Symbol: "<root>",
		Kind:   types.KindName,
		Role:   types.RoleDefinition,
	})
	return g
}

// RootNode returns the graph's fixed root node handle (ROOT_NODE).
func (g *Graph) RootNode() types.NodeHandle {
	return g.rootHandle
}

// DomainNode returns the handle to the domain-tag node for d, creating
// it (as ROOT_NODE's child) on first use. This is the DOMAIN_NODE global
// bound before each file's rule execution.
func (g *Graph) DomainNode(d types.Domain) types.NodeHandle {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.domainHandles[d]; ok {
		return h
	}

	h := g.addNodeLocked(types.NodeAttrs{
		Symbol: d.DomainTag(),
		Kind:   types.KindName,
		Role:   types.RoleDefinition,
		Domain: d,
	})
	g.addEdgeLocked(g.rootHandle, h, types.PrecedenceContainment)
	g.domainHandles[d] = h
	return h
}

// AddNode inserts a node and returns its handle. Duplicates (by
// symbol/kind/location) are permitted; dedup is an external concern.
func (g *Graph) AddNode(attrs types.NodeAttrs) types.NodeHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addNodeLocked(attrs)
}

func (g *Graph) addNodeLocked(attrs types.NodeAttrs) types.NodeHandle {
	g.nextHandle++
	h := g.nextHandle

	n := &Node{
		Handle:   h,
		Symbol:   attrs.Symbol,
		Kind:     attrs.Kind,
		Role:     attrs.Role,
		Location: attrs.Location,
		Domain:   attrs.Domain,
	}
	g.nodes[h] = n
	g.byKind[attrs.Kind] = append(g.byKind[attrs.Kind], h)
	if attrs.Location.File != "" {
		g.byFile[attrs.Location.File] = append(g.byFile[attrs.Location.File], h)
	}
	return h
}

// AddEdge inserts a directed edge. Idempotent for identical triples.
func (g *Graph) AddEdge(src, dst types.NodeHandle, precedence int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdgeLocked(src, dst, precedence)
}

func (g *Graph) addEdgeLocked(src, dst types.NodeHandle, precedence int) {
	for _, e := range g.outEdges[src] {
		if e.Dst == dst && e.Precedence == precedence {
			return
		}
	}
	g.outEdges[src] = append(g.outEdges[src], Edge{Src: src, Dst: dst, Precedence: precedence})
	sort.Slice(g.outEdges[src], func(i, j int) bool {
		a, b := g.outEdges[src][i], g.outEdges[src][j]
		if a.Dst != b.Dst {
			return a.Dst < b.Dst
		}
		return a.Precedence < b.Precedence
	})
}

// AddContainment adds the paired containment (prec 0, parent->child) and
// FQDN (prec 10, child->parent) edges required by spec.md §4.3.
func (g *Graph) AddContainment(parent, child types.NodeHandle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdgeLocked(parent, child, types.PrecedenceContainment)
	g.addEdgeLocked(child, parent, types.PrecedenceFQDN)
}

// Node looks up a node by handle.
func (g *Graph) Node(h types.NodeHandle) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[h]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Outgoing returns the edges leaving node, sorted by sink handle then
// precedence, as spec.md §4.2 requires.
func (g *Graph) Outgoing(node types.NodeHandle) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges := g.outEdges[node]
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// OutgoingByPrecedence returns only the edges of the given precedence.
func (g *Graph) OutgoingByPrecedence(node types.NodeHandle, precedence int) []Edge {
	all := g.Outgoing(node)
	out := make([]Edge, 0, len(all))
	for _, e := range all {
		if e.Precedence == precedence {
			out = append(out, e)
		}
	}
	return out
}

// NodesByFile returns handles of nodes anchored to path, in ascending
// handle order.
func (g *Graph) NodesByFile(path string) []types.NodeHandle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	handles := g.byFile[path]
	out := make([]types.NodeHandle, len(handles))
	copy(out, handles)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NodesByKind returns handles of nodes of the given kind, in ascending
// handle order.
func (g *Graph) NodesByKind(kind types.SyntaxKind) []types.NodeHandle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	handles := g.byKind[kind]
	out := make([]types.NodeHandle, len(handles))
	copy(out, handles)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllNodesWithSymbol returns handles of every node with a non-empty
// symbol, in ascending handle order.
func (g *Graph) AllNodesWithSymbol() []types.NodeHandle {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]types.NodeHandle, 0, len(g.nodes))
	for h, n := range g.nodes {
		if n.Symbol != "" {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Persist writes every node and edge currently held in memory to backing.
// It does not clear anything backing already has for files not present
// in this graph.
func (g *Graph) Persist(backing Backing) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, n := range g.nodes {
		if err := backing.WriteNode(*n); err != nil {
			return err
		}
	}
	for _, edges := range g.outEdges {
		for _, e := range edges {
			if err := backing.WriteEdge(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Restore replaces this graph's contents with what backing holds,
// preserving node handles exactly as stored.
func (g *Graph) Restore(backing Backing) error {
	nodes, edges, err := backing.LoadAll()
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[types.NodeHandle]*Node, len(nodes))
	g.outEdges = make(map[types.NodeHandle][]Edge, len(nodes))
	g.byFile = make(map[string][]types.NodeHandle)
	g.byKind = make(map[types.SyntaxKind][]types.NodeHandle)
	g.domainHandles = make(map[types.Domain]types.NodeHandle)
	g.nextHandle = 0

	for _, n := range nodes {
		node := n
		g.nodes[node.Handle] = &node
		if node.Handle > g.nextHandle {
			g.nextHandle = node.Handle
		}
		g.byKind[node.Kind] = append(g.byKind[node.Kind], node.Handle)
		if node.Location.File != "" {
			g.byFile[node.Location.File] = append(g.byFile[node.Location.File], node.Handle)
		}
		if node.Domain != "" && node.Symbol == node.Domain.DomainTag() {
			g.domainHandles[node.Domain] = node.Handle
		}
	}
	for _, e := range edges {
		g.outEdges[e.Src] = append(g.outEdges[e.Src], e)
	}
	for src := range g.outEdges {
		edges := g.outEdges[src]
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Dst != edges[j].Dst {
				return edges[i].Dst < edges[j].Dst
			}
			return edges[i].Precedence < edges[j].Precedence
		})
	}
	if h, ok := g.nodes[1]; ok && h.Symbol == "<root>" {
		g.rootHandle = 1
	}
	return nil
}

// PurgeFile removes every node anchored to path and any edge that
// touches one of those nodes, ahead of a re-index of that file.
func (g *Graph) PurgeFile(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	dead := make(map[types.NodeHandle]bool, len(g.byFile[path]))
	for _, h := range g.byFile[path] {
		dead[h] = true
	}
	delete(g.byFile, path)

	for h := range dead {
		delete(g.nodes, h)
		delete(g.outEdges, h)
	}
	for src, edges := range g.outEdges {
		kept := edges[:0]
		for _, e := range edges {
			if !dead[e.Dst] {
				kept = append(kept, e)
			}
		}
		g.outEdges[src] = kept
	}
	for kind, handles := range g.byKind {
		kept := handles[:0]
		for _, h := range handles {
			if !dead[h] {
				kept = append(kept, h)
			}
		}
		g.byKind[kind] = kept
	}
}
