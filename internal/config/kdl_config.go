package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from a .symgraph.kdl file
// under projectRoot. It returns (nil, nil) if the file does not exist.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".symgraph.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .symgraph.kdl: %w", err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if cfg.Project.Root != "" && !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}

	return cfg, nil
}

// parseKDL parses the body of a .symgraph.kdl document into a sparse
// Config: only fields the document actually sets are populated, so the
// caller can distinguish "unset" from "explicitly zero" when merging
// onto defaultConfig.
func parseKDL(content string) (*Config, error) {
	cfg := &Config{}

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}

		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSize = int64(v)
					} else if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Index.MaxFileSize = sz
						}
					}
				case "max_file_count":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileCount = v
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.FollowSymlinks = b
						cfg.Index.followSymlinksSet = true
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
						cfg.Index.respectGitignoreSet = true
					}
				}
			}

		case "performance":
			for _, cn := range n.Children {
				if nodeName(cn) == "max_goroutines" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.MaxGoroutines = v
					}
				}
			}

		case "include":
			cfg.Index.Include = append(cfg.Index.Include, collectStringArgs(n)...)

		case "exclude":
			cfg.Index.Exclude = append(cfg.Index.Exclude, collectStringArgs(n)...)

		case "dependency":
			cfg.Domains.Dependencies = append(cfg.Domains.Dependencies, parseDependencyRoot(n))

		case "builtin":
			cfg.Domains.BuiltinRoots = append(cfg.Domains.BuiltinRoots, parseDependencyRoot(n))
		}
	}

	return cfg, nil
}

// parseDependencyRoot reads a `dependency "path" { xmldoc "path" }` or
// `builtin` block into one DependencyRoot.
func parseDependencyRoot(n *document.Node) DependencyRoot {
	root := DependencyRoot{}
	if s, ok := firstStringArg(n); ok {
		root.Path = s
	}
	for _, cn := range n.Children {
		if nodeName(cn) == "xmldoc" {
			if s, ok := firstStringArg(cn); ok {
				root.XMLDocPath = s
			}
		}
	}
	return root
}

// Helper functions over the kdl-go document model.
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize parses a human size like "10MB" or a bare byte count.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "B"):
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return n * multiplier, nil
}
