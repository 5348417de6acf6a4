//go:build unix

package vmem

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wippyai/isolate/errors"
)

// Prot is a page protection mode.
type Prot int

const (
	// ProtNone makes pages inaccessible. Guard regions stay in this state
	// for their whole life.
	ProtNone Prot = iota
	// ProtRead makes pages readable.
	ProtRead
	// ProtReadWrite makes pages readable and writable.
	ProtReadWrite
)

func (p Prot) sysProt() int {
	switch p {
	case ProtRead:
		return unix.PROT_READ
	case ProtReadWrite:
		return unix.PROT_READ | unix.PROT_WRITE
	default:
		return unix.PROT_NONE
	}
}

var (
	pageSizeOnce sync.Once
	pageSize     uint64
)

// PageSize returns the host page size.
func PageSize() uint64 {
	pageSizeOnce.Do(func() {
		pageSize = uint64(unix.Getpagesize())
	})
	return pageSize
}

// PageAlign rounds n up to the next host page boundary.
func PageAlign(n uint64) uint64 {
	p := PageSize()
	return (n + p - 1) &^ (p - 1)
}

// Region is one anonymous reservation of address space. It starts fully
// PROT_NONE and uncommitted; sub-ranges are committed, protected and
// decommitted explicitly. A Region is exclusively owned and released once.
type Region struct {
	mem      []byte
	released bool
}

// Reserve reserves size bytes of address space with no physical backing.
// size is rounded up to the host page size. The reservation is PROT_NONE:
// any access faults until a range is committed.
func Reserve(size uint64) (*Region, error) {
	if size == 0 {
		return nil, errors.InvalidInput(errors.PhaseReserve, "zero-length reservation")
	}
	r := PageAlign(size)
	mem, err := unix.Mmap(-1, 0, int(r), unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
	if err != nil {
		return nil, errors.FatalMapping(errors.PhaseReserve, err, "reserve %d bytes", r)
	}
	return &Region{mem: mem}, nil
}

// Base returns the start address of the reservation.
func (r *Region) Base() uintptr {
	if len(r.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.mem[0]))
}

// Size returns the reservation length in bytes.
func (r *Region) Size() uint64 {
	return uint64(len(r.mem))
}

func (r *Region) checkRange(phase errors.Phase, off, length uint64) error {
	if r.released {
		return errors.Closed(phase, "region")
	}
	p := PageSize()
	if off%p != 0 || length%p != 0 {
		return errors.InvalidInput(phase, "range %d+%d not page aligned", off, length)
	}
	if off+length < off || off+length > r.Size() {
		return errors.InvalidInput(phase, "range %d+%d outside reservation of %d", off, length, r.Size())
	}
	return nil
}

// Commit makes [off, off+length) readable and writable, materializing
// zeroed pages on first touch.
func (r *Region) Commit(off, length uint64) error {
	return r.Protect(off, length, ProtReadWrite)
}

// Protect sets the protection of [off, off+length).
func (r *Region) Protect(off, length uint64, prot Prot) error {
	if err := r.checkRange(errors.PhaseCommit, off, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	if err := unix.Mprotect(r.mem[off:off+length], prot.sysProt()); err != nil {
		return errors.FatalMapping(errors.PhaseCommit, err, "protect %d+%d", off, length)
	}
	return nil
}

// Decommit returns the physical pages backing [off, off+length) to the OS
// and re-protects the range PROT_NONE, keeping the reservation. The next
// Commit of the same range reads as zero.
func (r *Region) Decommit(off, length uint64) error {
	if err := r.checkRange(errors.PhaseRelease, off, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	if err := decommit(r.mem[off : off+length]); err != nil {
		return errors.FatalMapping(errors.PhaseRelease, err, "decommit %d+%d", off, length)
	}
	if err := unix.Mprotect(r.mem[off:off+length], unix.PROT_NONE); err != nil {
		return errors.FatalMapping(errors.PhaseRelease, err, "reprotect %d+%d", off, length)
	}
	return nil
}

// MapFileFixed maps length bytes of fd at fileOff into the reservation at
// off, MAP_PRIVATE: writes stay private to this mapping while clean pages
// remain shared with every other mapping of the same fd. This is the
// copy-on-write entry point used by the cow package.
func (r *Region) MapFileFixed(fd int, fileOff int64, off, length uint64) error {
	if err := r.checkRange(errors.PhaseCommit, off, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	addr := unsafe.Pointer(&r.mem[off])
	_, err := unix.MmapPtr(fd, fileOff, addr, uintptr(length),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_FIXED)
	if err != nil {
		return errors.FatalMapping(errors.PhaseCommit, err, "map file fixed %d+%d", off, length)
	}
	return nil
}

// ResetAnon replaces [off, off+length) with a fresh anonymous PROT_NONE
// mapping, discarding any file-backed or written pages. Used when a slot is
// returned to the pool so the next tenant starts from the reservation's
// initial state.
func (r *Region) ResetAnon(off, length uint64) error {
	if err := r.checkRange(errors.PhaseRelease, off, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	addr := unsafe.Pointer(&r.mem[off])
	_, err := unix.MmapPtr(-1, 0, addr, uintptr(length), unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_FIXED|unix.MAP_NORESERVE)
	if err != nil {
		return errors.FatalMapping(errors.PhaseRelease, err, "reset %d+%d", off, length)
	}
	return nil
}

// Slice returns a view of [off, off+length). The caller must have committed
// the range; touching uncommitted bytes through the slice faults.
func (r *Region) Slice(off, length uint64) []byte {
	return r.mem[off : off+length : off+length]
}

// Release unmaps the whole reservation. Exactly one owner calls Release,
// exactly once; a second call reports the double release.
func (r *Region) Release() error {
	if r.released {
		return errors.Closed(errors.PhaseRelease, "region")
	}
	r.released = true
	mem := r.mem
	r.mem = nil
	if err := unix.Munmap(mem); err != nil {
		return errors.FatalMapping(errors.PhaseRelease, err, "unmap reservation")
	}
	return nil
}

// Released reports whether Release has been called.
func (r *Region) Released() bool {
	return r.released
}
