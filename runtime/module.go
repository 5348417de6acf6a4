package runtime

import (
	"sync/atomic"

	"go.uber.org/zap"

	isolate "github.com/wippyai/isolate"
	"github.com/wippyai/isolate/cow"
	"github.com/wippyai/isolate/errors"
)

// Module is a compiled module description bound to one runtime: limits
// validated against the pool, initial memory contents baked into shareable
// copy-on-write images, and code ranges registered for fault
// classification. Instantiate as many times as pool capacity allows.
type Module struct {
	rt     *Runtime
	id     uint64
	desc   *isolate.ModuleDescription
	images []*cow.Image
	closed atomic.Bool
}

// CompileModule validates desc against the pool geometry and prepares the
// module's memory images. A module whose declared maxima exceed the
// configured slot sizes is rejected here, at load time — never at fault
// time.
func (r *Runtime) CompileModule(desc *isolate.ModuleDescription) (*Module, error) {
	if err := r.checkOpen(errors.PhaseCompile); err != nil {
		return nil, err
	}
	cfg := r.pool.Config()
	if err := cfg.CheckModule(desc); err != nil {
		return nil, err
	}

	m := &Module{
		rt:   r,
		id:   r.nextID.Add(1),
		desc: desc,
	}

	for i, mem := range desc.Memories {
		maxBytes := mem.MaxPages * isolate.PageSize
		if mem.MaxPages == 0 {
			maxBytes = cfg.Memories.SlotSize
		}
		// Initial data segments describe memory zero; further memories
		// start out zeroed.
		var segs []isolate.DataSegment
		if i == 0 {
			segs = desc.Segments
		}
		img, err := cow.Build(segs, maxBytes, cfg.Policy)
		if err != nil {
			for _, built := range m.images {
				built.Close()
			}
			return nil, err
		}
		m.images = append(m.images, img)
	}

	r.pool.Registry().AddCode(desc.CodeRanges)

	r.log.Debug("module compiled",
		zap.String("module", desc.Name),
		zap.Uint64("id", m.id),
		zap.Int("memories", len(desc.Memories)),
	)
	return m, nil
}

// Name returns the module's name from its description.
func (m *Module) Name() string {
	return m.desc.Name
}

// Instantiate binds a full slot set for one instance. Pool exhaustion is
// recoverable: check errors.IsResourceExhausted and retry, queue or reject.
func (m *Module) Instantiate() (*Instance, error) {
	if m.closed.Load() {
		return nil, errors.Closed(errors.PhaseInstantiate, "module")
	}
	alloc, err := m.rt.pool.AcquireInstance(m.desc, m.images, m.id)
	if err != nil {
		return nil, err
	}
	return &Instance{module: m, alloc: alloc}, nil
}

// Close releases the module's images and withdraws its code ranges.
// Instances already running keep their mapped pages until torn down.
func (m *Module) Close() error {
	if m.closed.Swap(true) {
		return errors.Closed(errors.PhaseRelease, "module")
	}
	m.rt.pool.Registry().RemoveCode(m.desc.CodeRanges)
	var firstErr error
	for _, img := range m.images {
		if err := img.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
