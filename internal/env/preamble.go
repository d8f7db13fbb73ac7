// Package env builds the environment preamble: the synthetic
// user/model pair that seeds every chat with the date, OS, working
// directory, and a bounded folder listing.
package env

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/lodestone-ai/lodestone/internal/agent/tools"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// MaxListingEntries bounds the folder listing in the preamble.
const MaxListingEntries = 200

// alwaysIgnoredFolders are skipped regardless of ignore files.
var alwaysIgnoredFolders = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"dist":         {},
}

// preambleAck is the fixed model half of the preamble pair.
const preambleAck = "Got it. Thanks for the context!"

// BuildPreamble renders the environment context as a user turn plus
// the model's acknowledgement.
func BuildPreamble(workDir string, now time.Time) []genai.Content {
	var b strings.Builder
	fmt.Fprintf(&b, "This is the CLI agent. We are setting up the context for our chat.\n")
	fmt.Fprintf(&b, "Today's date is %s.\n", now.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "My operating system is: %s\n", runtime.GOOS)
	fmt.Fprintf(&b, "I'm currently working in the directory: %s\n", workDir)
	b.WriteString(FolderStructure(workDir))

	return []genai.Content{
		{Role: genai.RoleUser, Parts: []genai.Part{genai.NewTextPart(b.String())}},
		{Role: genai.RoleModel, Parts: []genai.Part{genai.NewTextPart(preambleAck)}},
	}
}

// FolderStructure renders a breadth-first folder listing truncated to
// MaxListingEntries, skipping always-ignored folders and any path the
// project's ignore files match.
func FolderStructure(root string) string {
	matcher := tools.LoadIgnoreMatcher(root)

	var b strings.Builder
	fmt.Fprintf(&b, "Showing up to %d items (files + folders).\n\n%s%c\n", MaxListingEntries, root, filepath.Separator)

	count := 0
	truncated := false

	type dirEntry struct {
		path   string
		indent string
	}
	queue := []dirEntry{{path: root, indent: ""}}

	for len(queue) > 0 && !truncated {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir.path)
		if err != nil {
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			if count >= MaxListingEntries {
				truncated = true
				break
			}
			full := filepath.Join(dir.path, e.Name())
			rel, err := filepath.Rel(root, full)
			if err != nil {
				continue
			}
			if e.IsDir() {
				if _, skip := alwaysIgnoredFolders[e.Name()]; skip {
					continue
				}
			}
			if matcher.Match(rel) {
				continue
			}

			if e.IsDir() {
				fmt.Fprintf(&b, "%s  %s%c\n", dir.indent, e.Name(), filepath.Separator)
				queue = append(queue, dirEntry{path: full, indent: dir.indent + "  "})
			} else {
				fmt.Fprintf(&b, "%s  %s\n", dir.indent, e.Name())
			}
			count++
		}
	}

	if truncated {
		b.WriteString("  ...\n")
	}
	return b.String()
}
