//go:build unix

package cow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	isolate "github.com/wippyai/isolate"
	"github.com/wippyai/isolate/vmem"
)

func testSegments() []isolate.DataSegment {
	return []isolate.DataSegment{
		{Offset: 0, Data: []byte("hello")},
		{Offset: 1024, Data: []byte{1, 2, 3, 4}},
	}
}

func policies(t *testing.T) map[string]Policy {
	t.Helper()
	return map[string]Policy{"auto": PolicyAuto, "eager": PolicyEagerCopy}
}

func TestMapIntoInitialContents(t *testing.T) {
	for name, policy := range policies(t) {
		t.Run(name, func(t *testing.T) {
			img, err := Build(testSegments(), 4*vmem.PageSize(), policy)
			require.NoError(t, err)
			defer img.Close()

			region, err := vmem.Reserve(img.ReservedSize())
			require.NoError(t, err)
			defer region.Release()

			require.NoError(t, img.MapInto(region, 0))

			mem := region.Slice(0, img.InitialSize())
			require.Equal(t, []byte("hello"), mem[:5])
			require.Equal(t, byte(0), mem[5], "gap between segments must read zero")
			require.Equal(t, []byte{1, 2, 3, 4}, mem[1024:1028])
		})
	}
}

// Writing at the same offset in N instances of one image must stay private
// to each instance, on both the copy-on-write and the eager path.
func TestInstanceIsolation(t *testing.T) {
	for name, policy := range policies(t) {
		t.Run(name, func(t *testing.T) {
			img, err := Build(testSegments(), 4*vmem.PageSize(), policy)
			require.NoError(t, err)
			defer img.Close()

			const n = 4
			regions := make([]*vmem.Region, n)
			for i := range regions {
				r, err := vmem.Reserve(img.ReservedSize())
				require.NoError(t, err)
				defer r.Release()
				require.NoError(t, img.MapInto(r, 0))
				regions[i] = r
			}

			for i, r := range regions {
				copy(r.Slice(0, vmem.PageSize()), fmt.Sprintf("instance-%d", i))
			}
			for i, r := range regions {
				got := string(r.Slice(0, vmem.PageSize())[:10])
				require.Equal(t, fmt.Sprintf("instance-%d", i), got,
					"instance %d observed a neighbor's write", i)
			}
		})
	}
}

// Growth commits further pages of the same reservation; the base address
// never changes.
func TestGrowthWithinReservation(t *testing.T) {
	img, err := Build(testSegments(), 8*vmem.PageSize(), PolicyAuto)
	require.NoError(t, err)
	defer img.Close()

	region, err := vmem.Reserve(img.ReservedSize())
	require.NoError(t, err)
	defer region.Release()

	require.NoError(t, img.MapInto(region, 0))
	base := region.Base()

	grown := img.InitialSize()
	require.NoError(t, region.Commit(grown, 2*vmem.PageSize()))
	require.Equal(t, base, region.Base())

	b := region.Slice(grown, vmem.PageSize())
	require.Equal(t, byte(0), b[0], "grown pages must read zero")
	b[0] = 0x11
}

func TestBuildRejectsSegmentPastReservation(t *testing.T) {
	segs := []isolate.DataSegment{{Offset: 4096, Data: make([]byte, 4096)}}
	_, err := Build(segs, 4096, PolicyAuto)
	require.Error(t, err)
}

func TestEmptyImage(t *testing.T) {
	img, err := Build(nil, 4*vmem.PageSize(), PolicyAuto)
	require.NoError(t, err)
	defer img.Close()

	require.Zero(t, img.InitialSize())
	require.False(t, img.CopyOnWrite())

	region, err := vmem.Reserve(img.ReservedSize())
	require.NoError(t, err)
	defer region.Release()
	require.NoError(t, img.MapInto(region, 0))
}

func TestMapIntoAfterClose(t *testing.T) {
	img, err := Build(testSegments(), 4*vmem.PageSize(), PolicyAuto)
	require.NoError(t, err)
	require.NoError(t, img.Close())

	region, err := vmem.Reserve(4 * vmem.PageSize())
	require.NoError(t, err)
	defer region.Release()

	require.Error(t, img.MapInto(region, 0))
	require.Error(t, img.Close(), "second close must be reported")
}

// Remapping a slot after ResetAnon must restore pristine image contents,
// not a previous tenant's writes.
func TestRemapAfterReset(t *testing.T) {
	for name, policy := range policies(t) {
		t.Run(name, func(t *testing.T) {
			img, err := Build(testSegments(), 4*vmem.PageSize(), policy)
			require.NoError(t, err)
			defer img.Close()

			region, err := vmem.Reserve(img.ReservedSize())
			require.NoError(t, err)
			defer region.Release()

			require.NoError(t, img.MapInto(region, 0))
			copy(region.Slice(0, 16), "scribbled-over!!")

			require.NoError(t, region.ResetAnon(0, img.InitialSize()))
			require.NoError(t, img.MapInto(region, 0))
			require.Equal(t, []byte("hello"), region.Slice(0, 5))
		})
	}
}
