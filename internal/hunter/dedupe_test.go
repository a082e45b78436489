package hunter

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicator_CollapsesConcurrentCalls(t *testing.T) {
	d := NewDeduplicator()

	var executions atomic.Int32
	var wg sync.WaitGroup
	results := make([]interface{}, 5)
	errs := make([]error, 5)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = d.Do("source-a", func() (interface{}, error) {
				executions.Add(1)
				time.Sleep(50 * time.Millisecond)
				return "payload", nil
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), executions.Load(), "concurrent identical calls must share one execution")
	for i := 0; i < 5; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "payload", results[i])
	}
}

func TestDeduplicator_DistinctKeysRunIndependently(t *testing.T) {
	d := NewDeduplicator()

	var executions atomic.Int32
	var wg sync.WaitGroup

	for _, key := range []string{"source-a", "source-b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _, err := d.Do(key, func() (interface{}, error) {
				executions.Add(1)
				time.Sleep(30 * time.Millisecond)
				return key, nil
			})
			require.NoError(t, err)
		}(key)
	}
	wg.Wait()

	assert.Equal(t, int32(2), executions.Load())
}

func TestDeduplicator_EntryForgottenAfterSettle(t *testing.T) {
	d := NewDeduplicator()

	var executions atomic.Int32
	op := func() (interface{}, error) {
		executions.Add(1)
		return nil, nil
	}

	_, _, err := d.Do("source-a", op)
	require.NoError(t, err)
	_, _, err = d.Do("source-a", op)
	require.NoError(t, err)

	assert.Equal(t, int32(2), executions.Load(), "sequential calls must each execute")
}
