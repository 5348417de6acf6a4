package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/isolate/errors"
)

func TestIndexAllocateUntilExhausted(t *testing.T) {
	a := NewIndexAllocator("memories", 3)

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		idx, err := a.Allocate()
		require.NoError(t, err)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 3)
		require.False(t, seen[idx], "index %d handed out twice", idx)
		seen[idx] = true
	}

	_, err := a.Allocate()
	require.Error(t, err)
	require.True(t, errors.IsResourceExhausted(err))
	require.Equal(t, 3, a.Live())
}

func TestIndexFreeAndReuse(t *testing.T) {
	a := NewIndexAllocator("tables", 2)

	i0, err := a.Allocate()
	require.NoError(t, err)
	_, err = a.Allocate()
	require.NoError(t, err)

	require.NoError(t, a.Free(i0, 0))

	i2, err := a.Allocate()
	require.NoError(t, err)
	require.Equal(t, i0, i2, "recycled index should come back before high water moves")
}

func TestIndexDoubleFree(t *testing.T) {
	a := NewIndexAllocator("stacks", 2)

	idx, err := a.Allocate()
	require.NoError(t, err)
	require.NoError(t, a.Free(idx, 0))

	err = a.Free(idx, 0)
	require.Error(t, err, "double free must be reported")

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errors.KindDoubleFree, e.Kind)
	require.Equal(t, idx, e.Index)
}

func TestIndexFreeOutOfRange(t *testing.T) {
	a := NewIndexAllocator("memories", 2)
	require.Error(t, a.Free(-1, 0))
	require.Error(t, a.Free(2, 0))
}

func TestIndexAffinityPrefersWarmSlot(t *testing.T) {
	a := NewIndexAllocator("memories", 4)

	idx, err := a.AllocateFor(7)
	require.NoError(t, err)
	require.NoError(t, a.Free(idx, 7))

	// Another module allocates and frees in between.
	other, err := a.AllocateFor(9)
	require.NoError(t, err)
	require.NoError(t, a.Free(other, 9))

	warm, err := a.AllocateFor(7)
	require.NoError(t, err)
	require.Equal(t, idx, warm, "affinity should hand back the warm index")
}

func TestIndexAffinityNeverBlocksCapacity(t *testing.T) {
	a := NewIndexAllocator("memories", 2)

	// Park both indices under module 1's affinity.
	i0, _ := a.AllocateFor(1)
	i1, _ := a.AllocateFor(1)
	require.NoError(t, a.Free(i0, 1))
	require.NoError(t, a.Free(i1, 1))

	// A different module must still get both: affinity is best effort.
	_, err := a.AllocateFor(2)
	require.NoError(t, err)
	_, err = a.AllocateFor(2)
	require.NoError(t, err)
	_, err = a.AllocateFor(2)
	require.True(t, errors.IsResourceExhausted(err))
}

func TestIndexConcurrentChurn(t *testing.T) {
	const capacity = 16
	a := NewIndexAllocator("memories", capacity)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(moduleID uint64) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				idx, err := a.AllocateFor(moduleID)
				if err != nil {
					require.True(t, errors.IsResourceExhausted(err))
					continue
				}
				require.NoError(t, a.Free(idx, moduleID))
			}
		}(uint64(w + 1))
	}
	wg.Wait()

	require.Equal(t, 0, a.Live())

	// Every index must still be allocatable exactly once.
	for i := 0; i < capacity; i++ {
		_, err := a.Allocate()
		require.NoError(t, err)
	}
	_, err := a.Allocate()
	require.True(t, errors.IsResourceExhausted(err))
}
