//go:build linux

package cputime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns a reader that replays the given values in order and
// keeps returning the last one.
func scripted(vals ...int64) func() (int64, error) {
	i := 0
	return func() (int64, error) {
		v := vals[i]
		if i < len(vals)-1 {
			i++
		}
		return v, nil
	}
}

func TestProcessWide_EvenSplit(t *testing.T) {
	// 300ms of process CPU across three live threads: 100ms each.
	tr := &processWide{read: scripted(300_000_000)}

	d := tr.Delta(map[int64]int{1: 11, 2: 22, 3: 33})
	require.Len(t, d, 3)
	for tid, ns := range d {
		assert.Equal(t, int64(100_000_000), ns, "tid %d", tid)
	}
}

func TestProcessWide_NoLiveThreads(t *testing.T) {
	tr := &processWide{read: scripted(50, 80)}
	d := tr.Delta(nil)
	assert.Empty(t, d)

	// The counter still advances while nobody is charged.
	d = tr.Delta(map[int64]int{1: 11})
	assert.Equal(t, int64(30), d[1])
}

func TestProcessWide_ReaderFailureChargesZero(t *testing.T) {
	fail := errors.New("no stat")
	tr := &processWide{lastNs: 100, read: func() (int64, error) { return 0, fail }}

	d := tr.Delta(map[int64]int{1: 11, 2: 22})
	require.Len(t, d, 2)
	assert.Equal(t, int64(0), d[1])
	assert.Equal(t, int64(0), d[2])
	assert.Equal(t, int64(100), tr.lastNs)
}

func TestProcessWide_CounterRegressionClamps(t *testing.T) {
	tr := &processWide{lastNs: 500, read: scripted(200)}

	d := tr.Delta(map[int64]int{1: 11})
	assert.Equal(t, int64(0), d[1])
	assert.Equal(t, int64(200), tr.lastNs, "regressed counter becomes the new baseline")
}

func TestProcessWide_RealReader(t *testing.T) {
	tr := newProcessWide()
	defer func() { require.NoError(t, tr.Close()) }()

	live := map[int64]int{1: 0, 2: 0}
	tr.Delta(live)

	end := time.Now().Add(150 * time.Millisecond)
	acc := uint64(1)
	for time.Now().Before(end) {
		acc = acc*6364136223846793005 + 1442695040888963407
	}
	_ = acc

	d := tr.Delta(live)
	require.Len(t, d, 2)
	// Even split: both threads get the same share.
	assert.Equal(t, d[1], d[2])
	assert.GreaterOrEqual(t, d[1], int64(0))
}
