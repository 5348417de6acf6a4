//go:build unix && !linux

package cow

import isolate "github.com/wippyai/isolate"

// No memfd outside Linux; every image takes the eager-copy path.
func createBacking(_ []isolate.DataSegment, _ uint64) (int, error) {
	return -1, nil
}

func closeBacking(_ int) error {
	return nil
}
