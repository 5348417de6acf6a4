package vmem

import "golang.org/x/sys/unix"

// MADV_DONTNEED drops anonymous pages immediately (next touch reads zero)
// and drops private copies of file-backed pages back to the file contents.
func decommit(b []byte) error {
	return unix.Madvise(b, unix.MADV_DONTNEED)
}
