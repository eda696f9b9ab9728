package unionfind

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnionFindBasic(t *testing.T) {
	s, err := New(10)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.Equal(t, i, s.Find(i))
	}
	s.Union(0, 1)
	s.Union(1, 2)
	s.Union(5, 6)
	require.Equal(t, s.Find(0), s.Find(1))
	require.Equal(t, s.Find(1), s.Find(2))
	require.Equal(t, s.Find(5), s.Find(6))
	require.NotEqual(t, s.Find(0), s.Find(5))
}

func TestUnionFindConcurrentUnions(t *testing.T) {
	const n = 2000
	s, err := New(n)
	require.NoError(t, err)

	var wg sync.WaitGroup
	// Chain-union every consecutive pair concurrently from many goroutines;
	// the end result must be a single set regardless of interleaving.
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for i := start; i+1 < n; i += 8 {
				s.Union(i, i+1)
			}
		}(g)
	}
	wg.Wait()

	root := s.Find(0)
	for i := 1; i < n; i++ {
		require.Equal(t, root, s.Find(i), "element %d not merged into the single set", i)
	}
}

func TestSetSizes(t *testing.T) {
	s, err := New(6)
	require.NoError(t, err)
	s.Union(0, 1)
	s.Union(1, 2)
	s.Union(3, 4)
	sizes := s.SetSizes()
	total := 0
	for _, n := range sizes {
		total += n
	}
	require.Equal(t, 6, total)
}
