// Package tools provides the builtin read-only file tools and the
// ignore-file matching they share with the environment preamble.
package tools

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ignoreFileNames are consulted in order; patterns accumulate.
var ignoreFileNames = []string{".gitignore", ".geminiignore"}

// IgnoreMatcher matches paths against the simple subset of ignore
// syntax the listing surfaces need: bare names, globs on the base
// name, and directory prefixes. Negations and anchored patterns are
// not interpreted.
type IgnoreMatcher struct {
	patterns []string
}

// LoadIgnoreMatcher reads the ignore files at root. Missing files are
// fine; the matcher is then empty.
func LoadIgnoreMatcher(root string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, name := range ignoreFileNames {
		f, err := os.Open(filepath.Join(root, name))
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
				continue
			}
			m.patterns = append(m.patterns, strings.TrimSuffix(line, "/"))
		}
		f.Close()
	}
	return m
}

// Match reports whether a root-relative path is ignored.
func (m *IgnoreMatcher) Match(rel string) bool {
	if len(m.patterns) == 0 {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	segments := strings.Split(rel, "/")

	for _, pattern := range m.patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		for _, seg := range segments {
			if seg == pattern {
				return true
			}
		}
		if strings.HasPrefix(rel, pattern+"/") || rel == pattern {
			return true
		}
	}
	return false
}
