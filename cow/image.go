//go:build unix

package cow

import (
	"sync/atomic"

	isolate "github.com/wippyai/isolate"
	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/vmem"
)

// Policy selects how images are instantiated into regions.
type Policy int

const (
	// PolicyAuto uses copy-on-write when the platform supports it and
	// falls back to eager copying otherwise.
	PolicyAuto Policy = iota
	// PolicyEagerCopy always copies the initial segments into the target
	// region. Used for verification and on platforms without memfd.
	PolicyEagerCopy
)

// Image is an immutable, shareable description of a module's initial linear
// memory. Any number of instances map it simultaneously; none can observe
// another's writes.
type Image struct {
	segments []isolate.DataSegment
	initial  uint64 // page-aligned extent of the initial contents
	reserved uint64 // reservation each instance needs, >= initial
	fd       int    // memfd holding the initial bytes, -1 on the eager path
	closed   atomic.Bool
}

// Build constructs an Image from the module's initial data segments.
// reservedSize is the per-instance reservation the image will be mapped
// into; it must cover the module's declared maximum so growth never needs a
// remap. Segments must lie within reservedSize.
func Build(segments []isolate.DataSegment, reservedSize uint64, policy Policy) (*Image, error) {
	var end uint64
	for _, seg := range segments {
		segEnd := seg.Offset + uint64(len(seg.Data))
		if segEnd < seg.Offset {
			return nil, errors.InvalidInput(errors.PhaseImage, "segment at %d overflows", seg.Offset)
		}
		if segEnd > reservedSize {
			return nil, errors.InvalidInput(errors.PhaseImage,
				"segment %d+%d exceeds reservation of %d", seg.Offset, len(seg.Data), reservedSize)
		}
		if segEnd > end {
			end = segEnd
		}
	}

	img := &Image{
		segments: segments,
		initial:  vmem.PageAlign(end),
		reserved: vmem.PageAlign(reservedSize),
		fd:       -1,
	}

	if policy == PolicyAuto && img.initial > 0 {
		fd, err := createBacking(segments, img.initial)
		if err != nil {
			return nil, err
		}
		img.fd = fd // -1 when the platform has no memfd
	}
	return img, nil
}

// InitialSize returns the page-aligned extent of the initial contents.
func (img *Image) InitialSize() uint64 {
	return img.initial
}

// ReservedSize returns the per-instance reservation the image expects.
func (img *Image) ReservedSize() uint64 {
	return img.reserved
}

// CopyOnWrite reports whether instantiation shares pages with the backing
// rather than copying eagerly.
func (img *Image) CopyOnWrite() bool {
	return img.fd >= 0
}

// MapInto instantiates the image into region at offset off, leaving
// [off, off+InitialSize()) committed, guest-writable and filled with the
// initial contents. The rest of the reservation stays uncommitted.
//
// Writes through the returned range never propagate to the backing or to
// other instances of the same image.
func (img *Image) MapInto(region *vmem.Region, off uint64) error {
	if img.closed.Load() {
		return errors.Closed(errors.PhaseInstantiate, "image")
	}
	if off+img.reserved > region.Size() {
		return errors.InvalidInput(errors.PhaseInstantiate,
			"image reservation %d does not fit region of %d at offset %d",
			img.reserved, region.Size(), off)
	}
	if img.initial == 0 {
		return nil
	}

	if img.fd >= 0 {
		return region.MapFileFixed(img.fd, 0, off, img.initial)
	}

	// Eager path: commit and copy. Same observable state as the mapping
	// path, every page private from the start.
	if err := region.Commit(off, img.initial); err != nil {
		return err
	}
	dst := region.Slice(off, img.initial)
	for _, seg := range img.segments {
		copy(dst[seg.Offset:], seg.Data)
	}
	return nil
}

// Close releases the image backing. Instances already mapped keep their
// pages (the kernel holds the backing alive until the last mapping goes);
// new MapInto calls fail.
func (img *Image) Close() error {
	if img.closed.Swap(true) {
		return errors.Closed(errors.PhaseRelease, "image")
	}
	if img.fd >= 0 {
		fd := img.fd
		img.fd = -1
		return closeBacking(fd)
	}
	return nil
}
