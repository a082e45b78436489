package hunter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Admit(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		admits   int
		want     []bool
	}{
		{
			name:     "burst up to capacity succeeds",
			capacity: 3,
			admits:   3,
			want:     []bool{true, true, true},
		},
		{
			name:     "request beyond capacity is denied",
			capacity: 2,
			admits:   3,
			want:     []bool{true, true, false},
		},
		{
			name:     "single token bucket",
			capacity: 1,
			admits:   2,
			want:     []bool{true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(tt.capacity, time.Minute)

			for i := 0; i < tt.admits; i++ {
				assert.Equal(t, tt.want[i], l.Admit(), "admit %d", i+1)
			}
		})
	}
}

func TestLimiter_RefillAfterWindow(t *testing.T) {
	l := NewLimiter(2, 50*time.Millisecond)

	require.True(t, l.Admit())
	require.True(t, l.Admit())
	require.False(t, l.Admit())

	time.Sleep(60 * time.Millisecond)

	assert.True(t, l.Admit(), "expected refill after window elapsed")
}

func TestLimiter_TokensNeverExceedCapacity(t *testing.T) {
	l := NewLimiter(3, 10*time.Millisecond)

	// Let several refill windows elapse without draining.
	time.Sleep(35 * time.Millisecond)
	require.True(t, l.Admit())

	assert.LessOrEqual(t, l.Remaining(), 3)
	assert.GreaterOrEqual(t, l.Remaining(), 0)
}

func TestLimiter_Reset(t *testing.T) {
	l := NewLimiter(2, time.Minute)

	require.True(t, l.Admit())
	require.True(t, l.Admit())
	require.False(t, l.Admit())

	l.Reset()

	assert.Equal(t, 2, l.Remaining())
	assert.True(t, l.Admit())
}
