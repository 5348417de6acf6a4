//go:build unix

package vmem

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/isolate/errors"
)

func TestReserveCommitWrite(t *testing.T) {
	r, err := Reserve(16 * PageSize())
	require.NoError(t, err)
	defer r.Release()

	require.NotZero(t, r.Base())
	require.Equal(t, 16*PageSize(), r.Size())

	require.NoError(t, r.Commit(0, 2*PageSize()))

	b := r.Slice(0, 2*PageSize())
	b[0] = 0xAB
	b[len(b)-1] = 0xCD
	require.Equal(t, byte(0xAB), b[0])
	require.Equal(t, byte(0xCD), b[len(b)-1])
}

func TestCommitReadsZero(t *testing.T) {
	r, err := Reserve(4 * PageSize())
	require.NoError(t, err)
	defer r.Release()

	require.NoError(t, r.Commit(PageSize(), PageSize()))
	b := r.Slice(PageSize(), PageSize())
	for i, v := range b {
		if v != 0 {
			t.Fatalf("fresh page not zero at %d: %#x", i, v)
		}
	}
}

func TestDecommitDropsContents(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("eager decommit semantics are only asserted on linux")
	}

	r, err := Reserve(4 * PageSize())
	require.NoError(t, err)
	defer r.Release()

	require.NoError(t, r.Commit(0, PageSize()))
	r.Slice(0, PageSize())[0] = 0xFF

	require.NoError(t, r.Decommit(0, PageSize()))
	require.NoError(t, r.Commit(0, PageSize()))
	require.Equal(t, byte(0), r.Slice(0, PageSize())[0], "previous tenant byte leaked through decommit")
}

func TestResetAnonScrubs(t *testing.T) {
	r, err := Reserve(4 * PageSize())
	require.NoError(t, err)
	defer r.Release()

	require.NoError(t, r.Commit(0, PageSize()))
	r.Slice(0, PageSize())[42] = 0x7E

	require.NoError(t, r.ResetAnon(0, PageSize()))
	require.NoError(t, r.Commit(0, PageSize()))
	require.Equal(t, byte(0), r.Slice(0, PageSize())[42])
}

func TestRangeValidation(t *testing.T) {
	r, err := Reserve(2 * PageSize())
	require.NoError(t, err)
	defer r.Release()

	err = r.Commit(1, PageSize()) // unaligned offset
	require.Error(t, err)

	err = r.Commit(0, 3*PageSize()) // past reservation
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errors.KindInvalidInput, e.Kind)
}

func TestReleaseExactlyOnce(t *testing.T) {
	r, err := Reserve(PageSize())
	require.NoError(t, err)

	require.NoError(t, r.Release())
	require.True(t, r.Released())

	err = r.Release()
	require.Error(t, err, "double release must be reported")

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errors.KindClosed, e.Kind)
}

func TestZeroReservationRejected(t *testing.T) {
	_, err := Reserve(0)
	require.Error(t, err)
}

func TestPageAlign(t *testing.T) {
	p := PageSize()
	require.Equal(t, uint64(0), PageAlign(0))
	require.Equal(t, p, PageAlign(1))
	require.Equal(t, p, PageAlign(p))
	require.Equal(t, 2*p, PageAlign(p+1))
}
