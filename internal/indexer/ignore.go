package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ignoreSet collects .gitignore patterns as the walk descends. Each pattern
// is scoped to the directory it was read from, so one flat list serves the
// whole tree and later (deeper) files take precedence.
type ignoreSet struct {
	patterns []gitignore.Pattern
}

// load reads dir/.gitignore under root. dir is slash-separated and "" for
// the root. A missing file adds nothing.
func (s *ignoreSet) load(root, dir string) error {
	filename := filepath.Join(root, filepath.FromSlash(dir), ".gitignore")
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}
	s.add(string(data), splitPath(dir))
	return nil
}

func (s *ignoreSet) add(content string, domain []string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		s.patterns = append(s.patterns, gitignore.ParsePattern(line, domain))
	}
}

func (s *ignoreSet) ignored(rel string, isDir bool) bool {
	if len(s.patterns) == 0 {
		return false
	}
	return gitignore.NewMatcher(s.patterns).Match(splitPath(rel), isDir)
}

func splitPath(rel string) []string {
	if rel == "" || rel == "." {
		return nil
	}
	return strings.Split(rel, "/")
}
