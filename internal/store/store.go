// Package store implements the sqlite-backed persistence layer for the
// symbol graph: the Files, Nodes, Edges, and PartialPaths logical tables.
// The store is the authoritative source of truth; the in-memory graph is
// a derived view rehydrated from it on startup.
package store

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/standardbeagle/sharpindex/internal/csharperrors"
	"github.com/standardbeagle/sharpindex/internal/graph"
	"github.com/standardbeagle/sharpindex/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	path TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	domain TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS nodes (
	handle INTEGER PRIMARY KEY,
	symbol TEXT NOT NULL,
	kind TEXT NOT NULL,
	role TEXT NOT NULL,
	file TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	start_char INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	end_char INTEGER NOT NULL,
	domain TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file);
CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);
CREATE TABLE IF NOT EXISTS edges (
	src INTEGER NOT NULL,
	dst INTEGER NOT NULL,
	precedence INTEGER NOT NULL,
	PRIMARY KEY (src, dst, precedence)
);
CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src);
CREATE TABLE IF NOT EXISTS partial_paths (
	source_node INTEGER NOT NULL,
	segment TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_partial_paths_source ON partial_paths(source_node);
`

// Store is a single-writer, multi-reader sqlite handle. Writes are
// serialized through mu; sqlite itself already permits concurrent
// readers against a WAL-mode database.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=off")
	if err != nil {
		return nil, csharperrors.NewStorageError("open", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, csharperrors.NewStorageError("migrate", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsEmpty reports whether the store holds no indexed files yet.
func (s *Store) IsEmpty() (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&count); err != nil {
		return false, csharperrors.NewStorageError("is_empty", err)
	}
	return count == 0, nil
}

// WriteFile upserts a file's content hash and domain tag.
func (s *Store) WriteFile(path string, contentHash string, domain types.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO files (path, content_hash, domain) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content_hash = excluded.content_hash, domain = excluded.domain
	`, path, contentHash, string(domain))
	if err != nil {
		return csharperrors.NewStorageError("write_file", err)
	}
	return nil
}

// FileHash returns the stored content hash for path, if any.
func (s *Store) FileHash(path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRow(`SELECT content_hash FROM files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, csharperrors.NewStorageError("file_hash", err)
	}
	return hash, true, nil
}

// WriteNode inserts or replaces one node row.
func (s *Store) WriteNode(n graph.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO nodes (handle, symbol, kind, role, file, start_line, start_char, end_line, end_char, domain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.Handle, n.Symbol, string(n.Kind), string(n.Role), n.Location.File,
		n.Location.StartLine, n.Location.StartChar, n.Location.EndLine, n.Location.EndChar, string(n.Domain))
	if err != nil {
		return csharperrors.NewStorageError("write_node", err)
	}
	return nil
}

// WriteEdge inserts an edge triple, ignoring the write if it already exists.
func (s *Store) WriteEdge(e graph.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO edges (src, dst, precedence) VALUES (?, ?, ?)
	`, e.Src, e.Dst, e.Precedence)
	if err != nil {
		return csharperrors.NewStorageError("write_edge", err)
	}
	return nil
}

// WritePartialPath records a serialized path segment for a source node.
func (s *Store) WritePartialPath(node types.NodeHandle, segment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO partial_paths (source_node, segment) VALUES (?, ?)`, node, segment)
	if err != nil {
		return csharperrors.NewStorageError("write_partial_path", err)
	}
	return nil
}

// PurgeFile deletes a file's row along with every node anchored to it and
// every edge touching one of those nodes.
func (s *Store) PurgeFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return csharperrors.NewStorageError("purge_file", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT handle FROM nodes WHERE file = ?`, path)
	if err != nil {
		return csharperrors.NewStorageError("purge_file", err)
	}
	var handles []types.NodeHandle
	for rows.Next() {
		var h types.NodeHandle
		if err := rows.Scan(&h); err != nil {
			rows.Close()
			return csharperrors.NewStorageError("purge_file", err)
		}
		handles = append(handles, h)
	}
	rows.Close()

	for _, h := range handles {
		if _, err := tx.Exec(`DELETE FROM edges WHERE src = ? OR dst = ?`, h, h); err != nil {
			return csharperrors.NewStorageError("purge_file", err)
		}
		if _, err := tx.Exec(`DELETE FROM partial_paths WHERE source_node = ?`, h); err != nil {
			return csharperrors.NewStorageError("purge_file", err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM nodes WHERE file = ?`, path); err != nil {
		return csharperrors.NewStorageError("purge_file", err)
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return csharperrors.NewStorageError("purge_file", err)
	}

	if err := tx.Commit(); err != nil {
		return csharperrors.NewStorageError("purge_file", err)
	}
	return nil
}

// LoadAll reads every node and edge back out, for graph rehydration.
func (s *Store) LoadAll() ([]graph.Node, []graph.Edge, error) {
	nodeRows, err := s.db.Query(`SELECT handle, symbol, kind, role, file, start_line, start_char, end_line, end_char, domain FROM nodes`)
	if err != nil {
		return nil, nil, csharperrors.NewStorageError("load_all", err)
	}
	defer nodeRows.Close()

	var nodes []graph.Node
	for nodeRows.Next() {
		var n graph.Node
		var kind, role, domain string
		if err := nodeRows.Scan(&n.Handle, &n.Symbol, &kind, &role, &n.Location.File,
			&n.Location.StartLine, &n.Location.StartChar, &n.Location.EndLine, &n.Location.EndChar, &domain); err != nil {
			return nil, nil, csharperrors.NewStorageError("load_all", err)
		}
		n.Kind = types.SyntaxKind(kind)
		n.Role = types.Role(role)
		n.Domain = types.Domain(domain)
		nodes = append(nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, nil, csharperrors.NewStorageError("load_all", err)
	}

	edgeRows, err := s.db.Query(`SELECT src, dst, precedence FROM edges`)
	if err != nil {
		return nil, nil, csharperrors.NewStorageError("load_all", err)
	}
	defer edgeRows.Close()

	var edges []graph.Edge
	for edgeRows.Next() {
		var e graph.Edge
		if err := edgeRows.Scan(&e.Src, &e.Dst, &e.Precedence); err != nil {
			return nil, nil, csharperrors.NewStorageError("load_all", err)
		}
		edges = append(edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, nil, csharperrors.NewStorageError("load_all", err)
	}

	return nodes, edges, nil
}
