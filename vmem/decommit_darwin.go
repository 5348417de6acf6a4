package vmem

import "golang.org/x/sys/unix"

// MADV_FREE lets the kernel reclaim the pages lazily. Correctness does not
// depend on when they are reclaimed: callers re-protect the range PROT_NONE
// and slots are re-zeroed through ResetAnon before reuse.
func decommit(b []byte) error {
	return unix.Madvise(b, unix.MADV_FREE)
}
