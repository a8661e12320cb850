// Package types defines the shared data model of the symbol graph: the
// closed syntax-kind vocabulary, node/edge shapes, locations, and the
// fully-qualified name representation the query engine reconstructs.
package types

import "fmt"

// FileID identifies a source file within one graph instance.
type FileID uint32

// NodeHandle is a stable, dense, opaque handle to a symbol node, unique
// within one graph instance for the lifetime of the process.
type NodeHandle uint64

// Domain is the provenance category of a symbol.
type Domain string

const (
	DomainSource     Domain = "source"
	DomainDependency Domain = "dependency"
	DomainBuiltin    Domain = "builtin"
)

// DomainTag returns the fixed backing-store symbol value for a domain,
// per spec.md §6 ("Domain tags recognized").
func (d Domain) DomainTag() string {
	return "<core>/source_type=" + string(d)
}

// Role distinguishes a symbol's defining occurrence from a reference to it.
type Role string

const (
	RoleDefinition Role = "definition"
	RoleReference  Role = "reference"
)

// SyntaxKind is the closed enumeration of node kinds from spec.md §3.
type SyntaxKind string

const (
	KindImport        SyntaxKind = "import"
	KindCompUnit      SyntaxKind = "comp_unit"
	KindNamespaceDecl SyntaxKind = "namespace_decl"
	KindClassDef      SyntaxKind = "class_def"
	KindMethodName    SyntaxKind = "method_name"
	KindFieldName     SyntaxKind = "field_name"
	KindLocalVar      SyntaxKind = "local_var"
	KindArgument      SyntaxKind = "argument"
	KindName          SyntaxKind = "name"
)

// Precedence values for edges. Only 0 and 10 are semantically
// distinguished by the query engine; 1-9 are reserved for future use
// and must be ignored by FQDN traversal.
const (
	PrecedenceContainment = 0
	PrecedenceFQDN        = 10
)

// Location is a zero-based, end-exclusive source span.
type Location struct {
	File      string
	StartLine int
	StartChar int
	EndLine   int
	EndChar   int
}

// IsZero reports whether the location was never set (e.g. a synthetic node).
func (l Location) IsZero() bool {
	return l == Location{}
}

// NodeAttrs are the fields supplied to Graph.AddNode.
type NodeAttrs struct {
	Symbol   string
	Kind     SyntaxKind
	Role     Role
	Location Location
	Domain   Domain
}

// FQDN is the reconstructed fully-qualified name of a candidate node:
// at most three parts, namespace/class/member, with member further
// distinguished as method or field by MemberKind.
type FQDN struct {
	Namespace  string
	Class      string
	Member     string
	MemberKind SyntaxKind // KindMethodName, KindFieldName, or "" if Member is empty
}

// Equal reports whether two FQDNs name the same symbol.
func (f FQDN) Equal(other FQDN) bool {
	return f.Namespace == other.Namespace && f.Class == other.Class && f.Member == other.Member
}

// String renders the canonical dotted form: namespace + "." + class +
// "." + member, joined only over non-empty parts, per spec.md §6.
func (f FQDN) String() string {
	var out string
	for _, part := range []string{f.Namespace, f.Class, f.Member} {
		if part == "" {
			continue
		}
		if out == "" {
			out = part
		} else {
			out = out + "." + part
		}
	}
	return out
}

// LocationKind is the location_kind query filter of spec.md §4.6.
type LocationKind string

const (
	LocationNamespace LocationKind = "namespace"
	LocationClass     LocationKind = "class"
	LocationMethod    LocationKind = "method"
	LocationField     LocationKind = "field"
	LocationAll       LocationKind = "all"
)

// DomainFilter restricts candidate enumeration to one or both source
// domains. Builtin nodes are never matched by a query in this spec.
type DomainFilter struct {
	Source     bool
	Dependency bool
}

// Allows reports whether d passes the filter.
func (df DomainFilter) Allows(d Domain) bool {
	switch d {
	case DomainSource:
		return df.Source
	case DomainDependency:
		return df.Dependency
	default:
		return false
	}
}

// ResultRecord is one match emitted by the query engine.
type ResultRecord struct {
	FileURI    string
	StartLine  int
	StartChar  int
	EndLine    int
	EndChar    int
	FQDNString string
}

func (r ResultRecord) String() string {
	return fmt.Sprintf("%s:%d:%d-%d:%d %s", r.FileURI, r.StartLine, r.StartChar, r.EndLine, r.EndChar, r.FQDNString)
}
