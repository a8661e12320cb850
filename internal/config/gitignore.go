package config

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// GitignoreParser matches paths against a project's .gitignore, feeding
// internal/indexer's discover alongside Index.Include/Exclude.
type GitignoreParser struct {
	patterns []GitignorePattern

	regexCache sync.Map // globToRegex(pattern) -> *regexp.Regexp
}

type GitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Absolute  bool

	patternType PatternType
	compiled    *regexp.Regexp
	prefix      string
	suffix      string
}

// PatternType classifies a pattern so ShouldIgnore can skip regex matching
// for the common exact/prefix/suffix cases.
type PatternType int

const (
	PatternExact PatternType = iota
	PatternPrefix
	PatternSuffix
	PatternContains
	PatternWildcard
	PatternComplex
)

func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{patterns: make([]GitignorePattern, 0)}
}

// LoadGitignore reads rootPath/.gitignore, if present. A missing file is
// not an error — a project need not have one.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.patterns = append(gp.patterns, gp.parsePattern(line))
	}
	return scanner.Err()
}

// AddPattern parses and appends a single pattern line, bypassing LoadGitignore.
func (gp *GitignoreParser) AddPattern(line string) {
	gp.patterns = append(gp.patterns, gp.parsePattern(line))
}

func (gp *GitignoreParser) parsePattern(line string) GitignorePattern {
	pattern := GitignorePattern{}
	line = extractPatternModifiers(&pattern, line)
	pattern.Pattern = line
	pattern.patternType, pattern.prefix, pattern.suffix, pattern.compiled = gp.classifyPattern(line)
	return pattern
}

// extractPatternModifiers strips and records a pattern's !, /, and trailing
// / modifiers, returning the bare pattern text.
func extractPatternModifiers(pattern *GitignorePattern, line string) string {
	if strings.HasPrefix(line, "!") {
		pattern.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		pattern.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		pattern.Absolute = true
		line = line[1:]
	}
	return line
}

// classifyPattern picks the cheapest matching strategy for pattern: exact
// string equality, a bare prefix/suffix check for single-asterisk globs, or
// a compiled (and cached) regex for anything more elaborate.
func (gp *GitignoreParser) classifyPattern(pattern string) (PatternType, string, string, *regexp.Regexp) {
	if !strings.ContainsAny(pattern, "*?[") {
		return PatternExact, pattern, pattern, nil
	}

	if strings.Contains(pattern, "*") && !strings.ContainsAny(pattern, "?[") {
		if strings.HasPrefix(pattern, "*") && !strings.Contains(pattern[1:], "*") {
			return PatternSuffix, "", pattern[1:], nil
		}
		if strings.HasSuffix(pattern, "*") && !strings.Contains(pattern[:len(pattern)-1], "*") {
			return PatternPrefix, pattern[:len(pattern)-1], "", nil
		}
	}

	regexPattern := globToRegex(pattern)
	if cached, ok := gp.regexCache.Load(regexPattern); ok {
		return PatternComplex, "", "", cached.(*regexp.Regexp)
	}
	compiled, err := regexp.Compile(regexPattern)
	if err != nil {
		return PatternWildcard, "", "", nil
	}
	gp.regexCache.Store(regexPattern, compiled)
	return PatternComplex, "", "", compiled
}

func globToRegex(pattern string) string {
	regex := regexp.QuoteMeta(pattern)
	regex = strings.ReplaceAll(regex, `\*`, `.*`)
	regex = strings.ReplaceAll(regex, `\?`, `.`)
	regex = strings.ReplaceAll(regex, `\[`, `[`)
	regex = strings.ReplaceAll(regex, `\]`, `]`)
	return "^" + regex + "$"
}

// ShouldIgnore reports whether path (isDir set when it names a directory)
// is excluded, applying patterns in order so a later negation can re-include
// what an earlier pattern excluded.
func (gp *GitignoreParser) ShouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	ignored := false
	for _, pattern := range gp.patterns {
		if gp.matchesPattern(pattern, path, isDir) {
			ignored = !pattern.Negate
		}
	}
	return ignored
}

func (gp *GitignoreParser) matchesPattern(pattern GitignorePattern, path string, isDir bool) bool {
	if pattern.Directory {
		if isDir {
			return gp.matchDirectory(pattern, path)
		}
		// A file beneath a matched directory is ignored too.
		if strings.HasPrefix(path, pattern.Pattern+"/") {
			return true
		}
		return gp.matchOne(pattern, path)
	}

	if pattern.Absolute {
		return gp.matchOne(pattern, path)
	}

	// Relative patterns match against the full path or any of its
	// trailing segments, per gitignore's "matches anywhere" rule.
	if gp.matchOne(pattern, path) {
		return true
	}
	parts := strings.Split(path, "/")
	for i := range parts {
		if gp.matchOne(pattern, strings.Join(parts[i:], "/")) {
			return true
		}
	}
	return false
}

func (gp *GitignoreParser) matchDirectory(pattern GitignorePattern, path string) bool {
	if gp.matchOne(pattern, path) {
		return true
	}
	if base := strings.TrimSuffix(pattern.Pattern, "/**"); base != pattern.Pattern {
		return path == base || strings.HasPrefix(path, base+"/")
	}
	return false
}

func (gp *GitignoreParser) matchOne(pattern GitignorePattern, path string) bool {
	switch pattern.patternType {
	case PatternExact:
		return pattern.Pattern == path
	case PatternPrefix:
		return strings.HasPrefix(path, pattern.prefix)
	case PatternSuffix:
		return strings.HasSuffix(path, pattern.suffix)
	case PatternComplex:
		return pattern.compiled.MatchString(path)
	default:
		matched, _ := filepath.Match(pattern.Pattern, path)
		return matched
	}
}
