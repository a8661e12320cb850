// Package rules is the CST→graph transformer (C3): a declarative rule set
// over C# tree-sitter node kinds that declares graph nodes from CST
// captures and emits the containment/back-reference edge pairs the query
// engine's FQDN reconstruction depends on.
//
// The rule table is expressed as a per-CST-kind dispatch (design option
// (b) of the source's own rule-engine notes: code-generated dispatch
// per node type, trading a runtime query interpreter for per-node
// speed) rather than a single tree-sitter query string, because
// containment requires tracking the nearest enclosing declaration as
// the walk descends — state a flat set of query matches does not carry
// on its own.
package rules

import (
	"errors"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"

	"github.com/standardbeagle/sharpindex/internal/csharperrors"
	"github.com/standardbeagle/sharpindex/internal/graph"
	"github.com/standardbeagle/sharpindex/internal/types"
)

// Env carries the read-only globals C5 binds before each file's walk:
// FILE_PATH, DOMAIN_NODE, and ROOT_NODE from spec.md §4.3.
type Env struct {
	FilePath   string
	DomainNode types.NodeHandle
	RootNode   types.NodeHandle
	Domain     types.Domain
}

// Engine holds the compiled C# grammar. It is write-once at startup and
// read-many across concurrent file walks — the underlying tree-sitter
// parser is not itself safe for concurrent use, so callers share one
// Engine and take a fresh parser from NewParser for each file walk (see
// internal/indexer).
type Engine struct {
	language *tree_sitter.Language
}

// New compiles the C# grammar once.
func New() (*Engine, error) {
	language := tree_sitter.NewLanguage(tree_sitter_csharp.Language())
	if language == nil {
		return nil, csharperrors.NewRuleError("setup_csharp", "tree-sitter-c-sharp returned a nil language")
	}
	return &Engine{language: language}, nil
}

// NewParser returns a parser bound to the C# grammar, one per goroutine.
func (e *Engine) NewParser() (*tree_sitter.Parser, error) {
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(e.language); err != nil {
		return nil, csharperrors.NewRuleError("setup_csharp", err.Error())
	}
	return parser, nil
}

// Run parses content with parser and walks the resulting CST, populating g
// per the required rule behaviors of spec.md §4.3.
func (e *Engine) Run(parser *tree_sitter.Parser, g *graph.Graph, env Env, content []byte) error {
	tree := parser.Parse(content, nil)
	if tree == nil {
		return csharperrors.NewParseError(env.FilePath, errors.New("tree-sitter produced no tree"))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return csharperrors.NewParseError(env.FilePath, errors.New("tree-sitter produced no root node"))
	}

	w := &walker{g: g, env: env, content: content}

	compUnit := w.newNode(types.KindCompUnit, types.RoleDefinition, env.FilePath, root)
	g.AddEdge(env.RootNode, env.DomainNode, types.PrecedenceContainment)
	g.AddEdge(env.DomainNode, compUnit, types.PrecedenceContainment)

	w.walkChildren(root, compUnit)
	return nil
}

// walker carries per-file state: the graph being populated, the file's
// env globals, and its source bytes for text extraction.
type walker struct {
	g       *graph.Graph
	env     Env
	content []byte
}

func (w *walker) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if start > uint(len(w.content)) || end > uint(len(w.content)) || start > end {
		return ""
	}
	return string(w.content[start:end])
}

func (w *walker) location(n *tree_sitter.Node) types.Location {
	if n == nil {
		return types.Location{}
	}
	start, end := n.StartPosition(), n.EndPosition()
	return types.Location{
		File:      w.env.FilePath,
		StartLine: int(start.Row),
		StartChar: int(start.Column),
		EndLine:   int(end.Row),
		EndChar:   int(end.Column),
	}
}

func (w *walker) newNode(kind types.SyntaxKind, role types.Role, symbol string, n *tree_sitter.Node) types.NodeHandle {
	return w.g.AddNode(types.NodeAttrs{
		Symbol:   symbol,
		Kind:     kind,
		Role:     role,
		Location: w.location(n),
		Domain:   w.env.Domain,
	})
}

func findChildByType(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func findChildByAnyType(n *tree_sitter.Node, kinds ...string) *tree_sitter.Node {
	for _, k := range kinds {
		if c := findChildByType(n, k); c != nil {
			return c
		}
	}
	return nil
}

// declName returns the identifier text for a declaration node, preferring
// the grammar's "name" field and falling back to the first bare or
// qualified identifier child.
func (w *walker) declName(n *tree_sitter.Node) *tree_sitter.Node {
	if name := n.ChildByFieldName("name"); name != nil {
		return name
	}
	return findChildByAnyType(n, "identifier", "qualified_name")
}

// walkChildren recurses over every child of n, dispatching each on its
// own kind. container is the graph handle of the nearest enclosing
// comp_unit/namespace_decl/class_def/method_name node — the parent side
// of whichever containment-table row a newly declared node belongs to.
func (w *walker) walkChildren(n *tree_sitter.Node, container types.NodeHandle) {
	for i := uint(0); i < n.ChildCount(); i++ {
		w.walkNode(n.Child(i), container)
	}
}

func (w *walker) walkNode(n *tree_sitter.Node, container types.NodeHandle) {
	if n == nil {
		return
	}

	switch n.Kind() {
	case "using_directive":
		w.handleUsing(n, container)
		return

	case "namespace_declaration", "file_scoped_namespace_declaration":
		w.handleNamespace(n, container)
		return

	case "class_declaration", "struct_declaration", "interface_declaration",
		"record_declaration", "record_struct_declaration":
		w.handleClass(n, container)
		return

	case "method_declaration", "constructor_declaration", "operator_declaration",
		"conversion_operator_declaration", "destructor_declaration":
		w.handleMethod(n, container)
		return

	case "field_declaration":
		w.handleField(n, container)
		return

	case "property_declaration":
		w.handleProperty(n, container)
		return

	case "local_declaration_statement":
		w.handleLocalDeclaration(n, container)
		return

	case "member_access_expression":
		w.handleMemberAccess(n, container)
		// still descend, in case the receiver expression itself
		// contains further object creations or member accesses.

	case "object_creation_expression":
		w.handleObjectCreation(n, container)

	case "argument":
		w.handleArgument(n, container)
	}

	w.walkChildren(n, container)
}

func (w *walker) handleUsing(n *tree_sitter.Node, container types.NodeHandle) {
	var nameNode *tree_sitter.Node
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || child.Kind() == "name_equals" {
			continue
		}
		if child.Kind() == "qualified_name" || child.Kind() == "identifier" {
			nameNode = child
			break
		}
	}
	if nameNode == nil {
		return
	}
	w.newNode(types.KindImport, types.RoleDefinition, w.text(nameNode), n)
}

func (w *walker) handleNamespace(n *tree_sitter.Node, container types.NodeHandle) {
	nameNode := w.declName(n)
	symbol := w.text(nameNode)
	handle := w.newNode(types.KindNamespaceDecl, types.RoleDefinition, symbol, n)
	w.g.AddContainment(container, handle)
	w.walkChildren(n, handle)
}

func (w *walker) handleClass(n *tree_sitter.Node, container types.NodeHandle) {
	nameNode := w.declName(n)
	symbol := w.text(nameNode)
	handle := w.newNode(types.KindClassDef, types.RoleDefinition, symbol, n)
	w.g.AddContainment(container, handle)
	w.walkChildren(n, handle)
}

func (w *walker) handleMethod(n *tree_sitter.Node, container types.NodeHandle) {
	nameNode := w.declName(n)
	symbol := w.text(nameNode)
	if symbol == "" {
		if op := n.ChildByFieldName("operator"); op != nil {
			symbol = w.text(op)
		}
	}
	handle := w.newNode(types.KindMethodName, types.RoleDefinition, symbol, n)
	w.g.AddContainment(container, handle)
	w.walkChildren(n, handle)
}

func (w *walker) handleField(n *tree_sitter.Node, container types.NodeHandle) {
	varDecl := findChildByType(n, "variable_declaration")
	if varDecl == nil {
		w.walkChildren(n, container)
		return
	}
	for i := uint(0); i < varDecl.ChildCount(); i++ {
		child := varDecl.Child(i)
		if child == nil || child.Kind() != "variable_declarator" {
			continue
		}
		nameNode := findChildByType(child, "identifier")
		if nameNode == nil {
			continue
		}
		handle := w.newNode(types.KindFieldName, types.RoleDefinition, w.text(nameNode), nameNode)
		w.g.AddContainment(container, handle)

		w.walkChildren(child, container)
	}
}

func (w *walker) handleProperty(n *tree_sitter.Node, container types.NodeHandle) {
	nameNode := w.declName(n)
	handle := w.newNode(types.KindFieldName, types.RoleDefinition, w.text(nameNode), n)
	w.g.AddContainment(container, handle)
	w.walkChildren(n, container)
}

func (w *walker) handleLocalDeclaration(n *tree_sitter.Node, container types.NodeHandle) {
	varDecl := findChildByType(n, "variable_declaration")
	if varDecl == nil {
		w.walkChildren(n, container)
		return
	}
	typeNode := varDecl.ChildByFieldName("type")

	for i := uint(0); i < varDecl.ChildCount(); i++ {
		child := varDecl.Child(i)
		if child == nil || child.Kind() != "variable_declarator" {
			continue
		}
		nameNode := findChildByType(child, "identifier")
		if nameNode == nil {
			continue
		}
		localHandle := w.newNode(types.KindLocalVar, types.RoleDefinition, w.text(nameNode), nameNode)
		w.g.AddContainment(container, localHandle)

		if typeNode != nil && typeNode.Kind() != "implicit_type" {
			typeHandle := w.newNode(types.KindClassDef, types.RoleReference, w.text(typeNode), typeNode)
			w.g.AddEdge(localHandle, typeHandle, types.PrecedenceContainment)
		}

		w.walkChildren(child, container)
	}
}

func (w *walker) handleMemberAccess(n *tree_sitter.Node, container types.NodeHandle) {
	expr := n.ChildByFieldName("expression")
	name := n.ChildByFieldName("name")
	if expr == nil || name == nil {
		return
	}
	symbol := w.text(expr) + "." + w.text(name)
	w.newNode(types.KindName, types.RoleReference, symbol, n)
}

func (w *walker) handleObjectCreation(n *tree_sitter.Node, container types.NodeHandle) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	w.newNode(types.KindClassDef, types.RoleReference, w.text(typeNode), typeNode)
}

func (w *walker) handleArgument(n *tree_sitter.Node, container types.NodeHandle) {
	handle := w.newNode(types.KindArgument, types.RoleReference, w.text(n), n)
	w.g.AddContainment(container, handle)
}
