package loadbalancer

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextBatchCoversExactly(t *testing.T) {
	lb := New(103, 10)
	covered := make([]bool, 103)
	for {
		begin, end, ok := lb.NextBatch()
		if !ok {
			break
		}
		for i := begin; i < end; i++ {
			require.False(t, covered[i], "index %d covered twice", i)
			covered[i] = true
		}
	}
	for i, c := range covered {
		require.True(t, c, "index %d never covered", i)
	}
}

func TestRunAbortsOnFirstError(t *testing.T) {
	var calls int64
	err := Run(1000, 10, 4, func(threadID, begin, end int) error {
		atomic.AddInt64(&calls, 1)
		if begin == 0 {
			return errBoom
		}
		return nil
	})
	require.Error(t, err)
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
