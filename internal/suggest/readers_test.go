package suggest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// panickingReaders lends readers for the first n projects and then panics.
type panickingReaders struct {
	n        int
	released atomic.Int32
	calls    int
}

func (p *panickingReaders) Acquire(project string) (*ReaderHandle, error) {
	p.calls++
	if p.calls > p.n {
		panic("reader pool corrupted")
	}
	return NewReaderHandle(project, nil, func() error {
		p.released.Add(1)
		return nil
	}), nil
}

func TestReaderHandle_ReleaseRunsOnce(t *testing.T) {
	var calls int
	h := NewReaderHandle("p", nil, func() error {
		calls++
		return fmt.Errorf("already closed")
	})

	h.Release()
	h.Release()

	assert.Equal(t, 1, calls)
}

func TestReaderHandle_NilReleaseIsSafe(t *testing.T) {
	h := NewReaderHandle("p", nil, nil)
	assert.NotPanics(t, h.Release)
}

func TestCollectReaders_SkipsFailedProjects(t *testing.T) {
	provider := &fakeReaders{fail: map[string]bool{"b": true}}

	readers, release := collectReaders(provider, true, []string{"a", "b", "c"})
	release()

	require.Len(t, readers, 2)
	assert.Equal(t, "a", readers[0].Project)
	assert.Equal(t, "c", readers[1].Project)
	assert.Equal(t, int32(2), provider.released.Load())
}

func TestCollectReaders_RootModeIgnoresRequestedProjects(t *testing.T) {
	provider := &fakeReaders{fail: map[string]bool{}}

	readers, release := collectReaders(provider, false, []string{"a", "b"})
	defer release()

	require.Len(t, readers, 1)
	assert.Equal(t, "", readers[0].Project)
}

func TestCollectReaders_RootFailureYieldsNothing(t *testing.T) {
	provider := &fakeReaders{fail: map[string]bool{"": true}}

	readers, release := collectReaders(provider, false, nil)
	release()

	assert.Empty(t, readers)
}

func TestCollectReaders_ReleasesAcquiredOnPanic(t *testing.T) {
	// Given: a provider that panics on the third project
	provider := &panickingReaders{n: 2}

	// When: collecting three readers
	assert.PanicsWithValue(t, "reader pool corrupted", func() {
		collectReaders(provider, true, []string{"a", "b", "c"})
	})

	// Then: the two acquired before the panic were released
	assert.Equal(t, int32(2), provider.released.Load())
}
