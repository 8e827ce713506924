package indexer

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultMaxFileSize skips files larger than 1MB.
const DefaultMaxFileSize = 1 << 20

// defaultExcludedDirs are never descended into.
var defaultExcludedDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"node_modules": {},
	"vendor":       {},
	"__pycache__":  {},
	".idea":        {},
	".vscode":      {},
}

var generatedMarkers = [][]byte{
	[]byte("// Code generated"),
	[]byte("// DO NOT EDIT"),
	[]byte("/* DO NOT EDIT"),
	[]byte("# Generated by"),
	[]byte("<!-- AUTO-GENERATED -->"),
}

// sourceFile is a file selected for indexing.
type sourceFile struct {
	rel     string // slash-separated, relative to the root
	content []byte
}

type walker struct {
	root        string
	maxFileSize int64
	gitignore   bool
	skipGen     bool
	ignores     ignoreSet
}

// walk calls fn for every indexable file under root.
func (w *walker) walk(ctx context.Context, fn func(sourceFile) error) error {
	w.ignores = ignoreSet{}
	if w.gitignore {
		if err := w.ignores.load(w.root, ""); err != nil {
			return err
		}
	}

	return filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == w.root {
				return err
			}
			return nil
		}

		relOS, err := filepath.Rel(w.root, p)
		if err != nil || relOS == "." {
			return nil
		}
		rel := filepath.ToSlash(relOS)

		if d.IsDir() {
			if _, skip := defaultExcludedDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			if w.ignored(rel, true) {
				return filepath.SkipDir
			}
			if w.gitignore {
				// An unreadable .gitignore only loses its patterns.
				_ = w.ignores.load(w.root, rel)
			}
			return nil
		}
		if !d.Type().IsRegular() || w.ignored(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > w.maxFileSize {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		if isBinary(content) || (w.skipGen && isGenerated(content)) {
			return nil
		}
		return fn(sourceFile{rel: rel, content: content})
	})
}

func (w *walker) ignored(rel string, isDir bool) bool {
	return w.gitignore && w.ignores.ignored(rel, isDir)
}

// isBinary looks for a NUL byte in the first 512 bytes.
func isBinary(content []byte) bool {
	head := content
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.IndexByte(head, 0) >= 0
}

func isGenerated(content []byte) bool {
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	for _, m := range generatedMarkers {
		if bytes.Contains(head, m) {
			return true
		}
	}
	return false
}

