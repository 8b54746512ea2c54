package spanlink

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSpan struct {
	id     uint64
	fin    atomic.Bool
	parent *testSpan
}

func (s *testSpan) TraceID() uint64   { return s.id }
func (s *testSpan) Finished() bool    { return s.fin.Load() }
func (s *testSpan) Parent() *testSpan { return s.parent }

func newLinks() *Links[testSpan, *testSpan] {
	return New[testSpan, *testSpan]()
}

func TestLinks_SingleSpan(t *testing.T) {
	l := newLinks()
	s := &testSpan{id: 7}
	l.Link(1, s)

	leaves := l.LeafSpans(1)
	require.Len(t, leaves, 1)
	assert.Same(t, s, leaves[0])
	assert.Equal(t, []uint64{7}, l.LeafTraceIDs(1))

	assert.Empty(t, l.LeafSpans(2), "unlinked thread has no spans")
}

func TestLinks_UnfinishedChildHidesParent(t *testing.T) {
	l := newLinks()
	parent := &testSpan{id: 1}
	child := &testSpan{id: 2, parent: parent}
	l.Link(1, parent)
	l.Link(1, child)

	leaves := l.LeafSpans(1)
	require.Len(t, leaves, 1)
	assert.Same(t, child, leaves[0])

	// Once the child finishes, the parent is the leaf again.
	child.fin.Store(true)
	leaves = l.LeafSpans(1)
	require.Len(t, leaves, 1)
	assert.Same(t, parent, leaves[0])
}

func TestLinks_MultipleUnfinishedChildren(t *testing.T) {
	l := newLinks()
	parent := &testSpan{id: 1}
	c1 := &testSpan{id: 2, parent: parent}
	c2 := &testSpan{id: 3, parent: parent}
	l.Link(1, parent)
	l.Link(1, c1)
	l.Link(1, c2)

	leaves := l.LeafSpans(1)
	assert.ElementsMatch(t, []*testSpan{c1, c2}, leaves)
	assert.Equal(t, []uint64{2, 3}, l.LeafTraceIDs(1))
}

func TestLinks_FinishedSpansExcluded(t *testing.T) {
	l := newLinks()
	s := &testSpan{id: 5}
	s.fin.Store(true)
	l.Link(1, s)

	assert.Empty(t, l.LeafSpans(1))
	assert.Nil(t, l.LeafTraceIDs(1))
}

func TestLinks_DuplicateTraceIDsDeduplicated(t *testing.T) {
	l := newLinks()
	l.Link(1, &testSpan{id: 9})
	l.Link(1, &testSpan{id: 9})

	assert.Equal(t, []uint64{9}, l.LeafTraceIDs(1))
}

func TestLinks_ClearThreads(t *testing.T) {
	l := newLinks()
	l.Link(1, &testSpan{id: 1})
	l.Link(2, &testSpan{id: 2})

	live := map[int64]struct{}{1: {}}
	l.ClearThreads(live)
	assert.NotEmpty(t, l.LeafSpans(1))
	assert.Empty(t, l.LeafSpans(2))

	// Idempotence: a second clear with the same set changes nothing.
	l.ClearThreads(live)
	assert.NotEmpty(t, l.LeafSpans(1))
	assert.Empty(t, l.LeafSpans(2))
}

func TestLinks_CollectedSpanVanishes(t *testing.T) {
	l := newLinks()
	func() {
		l.Link(1, &testSpan{id: 11})
	}()

	runtime.GC()
	runtime.GC()

	assert.Empty(t, l.LeafSpans(1), "a collected span must vanish without explicit removal")
}

func TestLinks_NeverExtendsSpanLifetime(t *testing.T) {
	l := newLinks()
	collected := make(chan struct{})
	func() {
		s := &testSpan{id: 12}
		runtime.AddCleanup(s, func(ch chan struct{}) { close(ch) }, collected)
		l.Link(1, s)
	}()

	runtime.GC()
	runtime.GC()

	// Cleanups run asynchronously after the cycle.
	select {
	case <-collected:
	case <-time.After(5 * time.Second):
		t.Fatal("link table kept the span alive across GC")
	}
}

func TestLinks_ConcurrentAccess(t *testing.T) {
	l := newLinks()
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				l.Link(int64(g), &testSpan{id: uint64(i)})
				l.LeafSpans(int64(g))
				l.ClearThreads(map[int64]struct{}{0: {}, 1: {}, 2: {}, 3: {}})
			}
		}(g)
	}
	wg.Wait()
}
