package cow

import (
	"golang.org/x/sys/unix"

	isolate "github.com/wippyai/isolate"
	"github.com/wippyai/isolate/errors"
)

// createBacking writes the initial segments into a sealed memfd of length
// size. The seals keep the backing immutable for its whole life, which is
// what makes sharing it read-only across instances sound.
func createBacking(segments []isolate.DataSegment, size uint64) (int, error) {
	fd, err := unix.MemfdCreate("isolate-image", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		// No memfd support (old kernel, seccomp policy): eager fallback.
		return -1, nil
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return -1, errors.FatalMapping(errors.PhaseImage, err, "size image backing to %d", size)
	}

	mem, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return -1, errors.FatalMapping(errors.PhaseImage, err, "map image backing")
	}
	for _, seg := range segments {
		copy(mem[seg.Offset:], seg.Data)
	}
	if err := unix.Munmap(mem); err != nil {
		unix.Close(fd)
		return -1, errors.FatalMapping(errors.PhaseImage, err, "unmap image backing")
	}

	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS,
		unix.F_SEAL_SHRINK|unix.F_SEAL_GROW|unix.F_SEAL_WRITE|unix.F_SEAL_SEAL); err != nil {
		unix.Close(fd)
		return -1, errors.FatalMapping(errors.PhaseImage, err, "seal image backing")
	}

	return fd, nil
}

func closeBacking(fd int) error {
	if err := unix.Close(fd); err != nil {
		return errors.FatalMapping(errors.PhaseRelease, err, "close image backing")
	}
	return nil
}
