// Package indexer implements C5: file discovery, per-file front-end
// dispatch (C3 for .cs, C4 for .xml), worker-pool fan-out, and
// persistence orchestration against a symbol graph and its backing
// store.
package indexer

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/sharpindex/internal/config"
	"github.com/standardbeagle/sharpindex/internal/csharperrors"
	"github.com/standardbeagle/sharpindex/internal/graph"
	"github.com/standardbeagle/sharpindex/internal/query"
	"github.com/standardbeagle/sharpindex/internal/rules"
	"github.com/standardbeagle/sharpindex/internal/types"
	"github.com/standardbeagle/sharpindex/internal/xmldoc"
)

// partialPathKinds are the FQDN-bearing definition kinds whose dotted
// prefixes get persisted to the PartialPaths table (spec.md §6) once a
// file's front-end has populated the graph.
var partialPathKinds = map[types.SyntaxKind]bool{
	types.KindNamespaceDecl: true,
	types.KindClassDef:      true,
	types.KindMethodName:    true,
	types.KindFieldName:     true,
}

// Report summarizes one Index or Reindex call: files that indexed
// cleanly and the per-file front-end failures that did not abort the
// run, following spec.md §4.5's isolate-and-continue failure policy.
type Report struct {
	FilesIndexed int
	FilesSkipped int
	Errors       []*csharperrors.ParseError
}

// Indexer owns the compiled rule engine, XML analyzer, and the graph
// they populate. One Indexer is shared across a project's Index and
// Reindex calls.
type Indexer struct {
	cfg     *config.Config
	g       *graph.Graph
	backing graph.Backing
	rules   *rules.Engine
	xmldoc  *xmldoc.Analyzer
	qe      *query.Engine // bound to g, reused to reconstruct FQDNs for partial-path persistence

	fastHashes map[string]uint64 // path -> xxhash short-circuit, in-process cache
}

// Open constructs an Indexer bound to backing, rehydrating g from it if
// backing already holds a prior index.
func Open(cfg *config.Config, backing graph.Backing) (*Indexer, *graph.Graph, error) {
	engine, err := rules.New()
	if err != nil {
		return nil, nil, err
	}

	g := graph.New()
	empty, err := backing.IsEmpty()
	if err != nil {
		return nil, nil, err
	}
	if !empty {
		if err := g.Restore(backing); err != nil {
			return nil, nil, err
		}
	}

	idx := &Indexer{
		cfg:        cfg,
		g:          g,
		backing:    backing,
		rules:      engine,
		xmldoc:     xmldoc.New(),
		qe:         query.New(g),
		fastHashes: make(map[string]uint64),
	}
	return idx, g, nil
}

// Index walks root, indexing every file that matches the project's
// include/exclude globs into domain d.
func (idx *Indexer) Index(ctx context.Context, root string, d types.Domain) (Report, error) {
	paths, err := idx.discover(root)
	if err != nil {
		return Report{}, err
	}
	report, err := idx.indexPaths(ctx, root, paths, d)
	if err != nil {
		return report, err
	}
	if err := idx.g.Persist(idx.backing); err != nil {
		return report, err
	}
	return report, nil
}

// Reindex re-processes exactly the given paths, each relative to root the
// same way discover's output is. A path that no longer exists on disk is
// purged and otherwise skipped. A path whose content still matches the
// hash already on file is left untouched — purging it first would erase
// the very record indexOne's hash short-circuit (SPEC_FULL.md §8 item 2)
// needs to recognize the file as unchanged, so the purge only runs once
// the content is confirmed to have actually changed.
func (idx *Indexer) Reindex(ctx context.Context, root string, changedPaths []string, d types.Domain) (Report, error) {
	sorted := append([]string(nil), changedPaths...)
	sort.Strings(sorted)

	report := Report{}
	for _, path := range sorted {
		if err := ctx.Err(); err != nil {
			return report, csharperrors.Cancelled
		}

		full := filepath.Join(root, path)
		if _, err := os.Stat(full); os.IsNotExist(err) {
			idx.g.PurgeFile(path)
			if err := idx.backing.PurgeFile(path); err != nil {
				return report, err
			}
			delete(idx.fastHashes, path)
			continue
		}

		if !idx.contentUnchanged(path, full) {
			idx.g.PurgeFile(path)
			if err := idx.backing.PurgeFile(path); err != nil {
				return report, err
			}
			delete(idx.fastHashes, path)
		}

		if err := idx.indexOne(root, path, d); err != nil {
			if pe, ok := err.(*csharperrors.ParseError); ok {
				report.Errors = append(report.Errors, pe)
				report.FilesSkipped++
				continue
			}
			return report, err
		}
		report.FilesIndexed++
	}
	if err := idx.g.Persist(idx.backing); err != nil {
		return report, err
	}
	return report, nil
}

// discover walks root and returns every file path (relative to root,
// slash-normalized) that passes the configured include/exclude globs
// (plus the project's .gitignore, when Index.RespectGitignore is set)
// and carries a front-end-relevant extension.
func (idx *Indexer) discover(root string) ([]string, error) {
	var gitignore *config.GitignoreParser
	if idx.cfg.Index.RespectGitignore {
		gitignore = config.NewGitignoreParser()
		if err := gitignore.LoadGitignore(root); err != nil {
			return nil, csharperrors.NewStorageError("discover", err)
		}
	}

	var out []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if frontendFor(path) == "" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if !idx.included(rel) || idx.excluded(rel) {
			return nil
		}
		if gitignore != nil && gitignore.ShouldIgnore(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > idx.cfg.Index.MaxFileSize {
			return nil
		}

		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, csharperrors.NewStorageError("discover", err)
	}

	sort.Strings(out)
	return out, nil
}

func (idx *Indexer) included(relPath string) bool {
	if len(idx.cfg.Index.Include) == 0 {
		return true
	}
	for _, pattern := range idx.cfg.Index.Include {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}

func (idx *Indexer) excluded(relPath string) bool {
	for _, pattern := range idx.cfg.Index.Exclude {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}

// frontendFor returns which C3/C4 front-end handles path's extension,
// or "" if the file is not one this indexer processes.
func frontendFor(path string) string {
	switch filepath.Ext(path) {
	case ".cs":
		return "rules"
	case ".xml":
		return "xmldoc"
	default:
		return ""
	}
}

// indexPaths runs the worker-pool fan-out of spec.md §4.5 over paths
// (each relative to root), sized off the configured (or CPU-derived)
// goroutine count.
func (idx *Indexer) indexPaths(ctx context.Context, root string, paths []string, d types.Domain) (Report, error) {
	workers := idx.cfg.Performance.MaxGoroutines
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type outcome struct {
		path    string
		skipped bool
		err     *csharperrors.ParseError
	}

	results := make([]outcome, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			if err := idx.indexOne(root, path, d); err != nil {
				if pe, ok := err.(*csharperrors.ParseError); ok {
					results[i] = outcome{path: path, skipped: true, err: pe}
					return nil
				}
				return err
			}
			results[i] = outcome{path: path}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return Report{}, csharperrors.Cancelled
		}
		return Report{}, err
	}

	report := Report{}
	for _, r := range results {
		if r.skipped {
			report.FilesSkipped++
			report.Errors = append(report.Errors, r.err)
			continue
		}
		report.FilesIndexed++
	}
	return report, nil
}

// indexOne dispatches a single file to its front-end, populating the
// in-memory graph. path is relative to root — the join of the two is
// used only for the disk read; every graph symbol and backing-store key
// uses path itself, matching spec.md §4.3's FILE_PATH contract. A
// short-circuit (an in-process xxhash cache first, then the SHA-1 the
// store has recorded for path) skips front-end work entirely when the
// file's content hasn't changed since the last index. Callers persist
// the graph to backing once the whole batch completes.
func (idx *Indexer) indexOne(root, path string, d types.Domain) error {
	content, err := os.ReadFile(filepath.Join(root, path))
	if err != nil {
		return csharperrors.NewParseError(path, err)
	}

	fast := xxhash.Sum64(content)
	if cached, ok := idx.fastHashes[path]; ok && cached == fast {
		return nil
	}
	idx.fastHashes[path] = fast

	authoritative := sha1Hex(content)
	if prev, ok, err := idx.storeFileHash(path); err == nil && ok && prev == authoritative {
		return nil
	}

	rootNode := idx.g.RootNode()
	domainNode := idx.g.DomainNode(d)

	switch frontendFor(path) {
	case "rules":
		parser, err := idx.rules.NewParser()
		if err != nil {
			return err
		}
		defer parser.Close()

		if err := idx.rules.Run(parser, idx.g, rules.Env{
			FilePath:   path,
			DomainNode: domainNode,
			RootNode:   rootNode,
			Domain:     d,
		}, content); err != nil {
			return err
		}

	case "xmldoc":
		if err := idx.xmldoc.Run(idx.g, xmldoc.Env{FilePath: path, Domain: d}, bytes.NewReader(content)); err != nil {
			return err
		}

	default:
		return nil
	}

	if err := idx.writePartialPaths(path); err != nil {
		return err
	}

	if err := idx.backing.WriteFile(path, authoritative, d); err != nil {
		return err
	}
	return nil
}

// writePartialPaths reconstructs the FQDN of every namespace/class/method/
// field definition this file just contributed and persists each of its
// dotted prefixes to the backing store's PartialPaths table (spec.md §4.5
// step 4, §6), so a caller can prefix-match a symbol's path there without
// walking the in-memory graph. A node whose ancestry is malformed is
// skipped rather than failing the whole file — the same isolate-and-continue
// policy phase B's own callers use.
func (idx *Indexer) writePartialPaths(path string) error {
	for _, h := range idx.g.NodesByFile(path) {
		n, ok := idx.g.Node(h)
		if !ok || n.Role != types.RoleDefinition || !partialPathKinds[n.Kind] {
			continue
		}
		fqdn, err := idx.qe.FQDNOf(n)
		if err != nil {
			continue
		}
		segments := strings.Split(fqdn.String(), ".")
		var prefix string
		for _, seg := range segments {
			if seg == "" {
				continue
			}
			if prefix == "" {
				prefix = seg
			} else {
				prefix = prefix + "." + seg
			}
			if err := idx.backing.WritePartialPath(h, prefix); err != nil {
				return err
			}
		}
	}
	return nil
}

// contentUnchanged reports whether full's on-disk content still matches
// the hash stored for path, without mutating any cache — Reindex uses
// this to decide whether a purge is warranted at all.
func (idx *Indexer) contentUnchanged(path, full string) bool {
	content, err := os.ReadFile(full)
	if err != nil {
		return false
	}
	prev, ok, err := idx.storeFileHash(path)
	if err != nil || !ok {
		return false
	}
	return prev == sha1Hex(content)
}

func (idx *Indexer) storeFileHash(path string) (string, bool, error) {
	type hashLookup interface {
		FileHash(path string) (string, bool, error)
	}
	if s, ok := idx.backing.(hashLookup); ok {
		return s.FileHash(path)
	}
	return "", false, nil
}

func sha1Hex(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}
