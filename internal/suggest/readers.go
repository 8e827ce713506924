package suggest

import (
	"log/slog"
	"sync"

	index "github.com/blevesearch/bleve_index_api"
)

// ReaderProvider lends per-project index readers. The project "" is the
// root index used when projects are disabled.
type ReaderProvider interface {
	Acquire(project string) (*ReaderHandle, error)
}

// ReaderHandle is a reader borrowed for one request.
type ReaderHandle struct {
	Project string
	Reader  index.IndexReader

	release func() error
	once    sync.Once
}

// NewReaderHandle wraps reader with its release callback.
func NewReaderHandle(project string, reader index.IndexReader, release func() error) *ReaderHandle {
	return &ReaderHandle{Project: project, Reader: reader, release: release}
}

// Release returns the reader. Only the first call has any effect.
func (h *ReaderHandle) Release() {
	h.once.Do(func() {
		if h.release == nil {
			return
		}
		if err := h.release(); err != nil {
			slog.Warn("Could not release index reader",
				slog.String("project", h.Project),
				slog.String("error", err.Error()))
		}
	})
}

// collectReaders acquires one reader per project, or the single root reader
// when projectsEnabled is false. Projects whose reader cannot be acquired are
// logged and skipped. The returned release func must be called (deferred) by
// the caller; it releases every handle acquired, even if acquisition panicked
// part way.
func collectReaders(provider ReaderProvider, projectsEnabled bool, projects []string) (readers []NamedReader, release func()) {
	var handles []*ReaderHandle
	release = func() {
		for _, h := range handles {
			h.Release()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			release()
			panic(r)
		}
	}()

	if !projectsEnabled {
		projects = []string{""}
	}

	for _, project := range projects {
		h, err := provider.Acquire(project)
		if err != nil {
			slog.Warn("Could not get index reader",
				slog.String("project", project),
				slog.String("error", err.Error()))
			continue
		}
		if h == nil {
			continue
		}
		handles = append(handles, h)
		readers = append(readers, NamedReader{Project: project, Reader: h.Reader})
	}

	return readers, release
}
