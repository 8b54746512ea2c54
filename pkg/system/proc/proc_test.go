//go:build linux

package proc

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// busySpin burns CPU on the calling thread for roughly d.
func busySpin(d time.Duration) {
	end := time.Now().Add(d)
	acc := uint64(1)
	for time.Now().Before(end) {
		for i := 0; i < 4096; i++ {
			acc = acc*6364136223846793005 + 1442695040888963407
		}
	}
	_ = acc
}

func TestClockTicks(t *testing.T) {
	t.Setenv("CLK_TCK", "250")
	assert.Equal(t, 250, ClockTicks())

	t.Setenv("CLK_TCK", "garbage")
	assert.Equal(t, 100, ClockTicks())

	t.Setenv("CLK_TCK", "")
	assert.Equal(t, 100, ClockTicks())
}

func TestSelfCPUTimeNs_Monotonic(t *testing.T) {
	before, err := SelfCPUTimeNs()
	require.NoError(t, err)
	require.GreaterOrEqual(t, before, int64(0))

	busySpin(150 * time.Millisecond)

	after, err := SelfCPUTimeNs()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after, before)
	assert.Greater(t, after, int64(0), "expected nonzero process CPU time after induced work")
}

func TestThreadCPUTimeNs_Self(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tid := unix.Gettid()
	before, err := ThreadCPUTimeNs(tid)
	require.NoError(t, err)

	busySpin(150 * time.Millisecond)

	after, err := ThreadCPUTimeNs(tid)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after, before)
}

func TestThreadCPUTimeNs_DeadThread(t *testing.T) {
	_, err := ThreadCPUTimeNs(999999999)
	require.Error(t, err)
}

func TestParseStatCPU(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		utime   uint64
		stime   uint64
		wantErr error
	}{
		{
			name:  "plain comm",
			line:  "1234 (worker) R 1 1 1 0 -1 4194560 100 0 0 0 77 33 0 0 20 0 4 0 100 0 0",
			utime: 77,
			stime: 33,
		},
		{
			name:  "comm with spaces and parens",
			line:  "1234 (tmux: server (x)) S 1 1 1 0 -1 4194560 100 0 0 0 12 7 0 0 20 0 4 0 100 0 0",
			utime: 12,
			stime: 7,
		},
		{
			name:    "no comm terminator",
			line:    "garbage",
			wantErr: ErrNoStat,
		},
		{
			name:    "too few fields",
			line:    "1234 (worker) R 1 1",
			wantErr: ErrShortStat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ut, st, err := parseStatCPU(tt.line)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.utime, ut)
			assert.Equal(t, tt.stime, st)
		})
	}
}
