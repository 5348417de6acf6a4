package pool

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/trap"
	"github.com/wippyai/isolate/vmem"
)

// Pool owns one reserved address range per resource class and hands out
// guard-paged slots from them. It is an explicitly constructed, explicitly
// closed object: independent pools (and their fault-classification tables)
// coexist in one process.
type Pool struct {
	cfg     Config
	log     *zap.Logger
	reg     *trap.Registry
	metrics *metrics

	memories *classPool
	tables   *classPool
	stacks   *classPool
	records  *classPool

	closed atomic.Bool
}

// classPool is the per-class reservation plus its index allocator.
type classPool struct {
	name      string
	region    *vmem.Region
	index     *IndexAllocator
	slotSize  uint64
	guardSize uint64
}

func newClassPool(name string, cfg ClassConfig, guardSize uint64) (*classPool, error) {
	total := guardSize + uint64(cfg.Capacity)*(cfg.SlotSize+guardSize)
	region, err := vmem.Reserve(total)
	if err != nil {
		return nil, err
	}
	return &classPool{
		name:      name,
		region:    region,
		index:     NewIndexAllocator(name, cfg.Capacity),
		slotSize:  cfg.SlotSize,
		guardSize: guardSize,
	}, nil
}

// slotOffset returns the byte offset of slot idx within the class region.
func (cp *classPool) slotOffset(idx int) uint64 {
	return cp.guardSize + uint64(idx)*(cp.slotSize+cp.guardSize)
}

// slotBase returns the host address of slot idx.
func (cp *classPool) slotBase(idx int) uintptr {
	return cp.region.Base() + uintptr(cp.slotOffset(idx))
}

// New constructs a Pool from cfg. The configuration is validated and
// normalized; all four class reservations are made up front, and every
// reservation already made is released if a later one fails.
func New(cfg Config) (p *Pool, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p = &Pool{
		cfg:     cfg,
		log:     cfg.Logger,
		reg:     cfg.Registry,
		metrics: newMetrics(cfg.Metrics),
	}

	classes := []struct {
		dst  **classPool
		name string
		cfg  ClassConfig
	}{
		{&p.memories, "memories", cfg.Memories},
		{&p.tables, "tables", cfg.Tables},
		{&p.stacks, "stacks", cfg.Stacks},
		{&p.records, "instances", cfg.Instances},
	}
	created := make([]*classPool, 0, len(classes))
	defer func() {
		if err != nil {
			for _, cp := range created {
				cp.region.Release()
			}
		}
	}()
	for _, c := range classes {
		cp, cerr := newClassPool(c.name, c.cfg, cfg.GuardSize)
		if cerr != nil {
			err = cerr
			return nil, err
		}
		created = append(created, cp)
		*c.dst = cp
	}

	p.log.Info("pool reserved",
		zap.Int("instances", cfg.Instances.Capacity),
		zap.Int("memories", cfg.Memories.Capacity),
		zap.Uint64("memory_slot_bytes", cfg.Memories.SlotSize),
		zap.Uint64("guard_bytes", cfg.GuardSize),
	)
	return p, nil
}

// Registry returns the trap registry this pool publishes slot bounds to.
// Guest entries classify faults against it.
func (p *Pool) Registry() *trap.Registry {
	return p.reg
}

// Config returns the normalized configuration the pool was built with.
func (p *Pool) Config() Config {
	return p.cfg
}

// Live returns the number of held slots per class, keyed by class name.
func (p *Pool) Live() map[string]int {
	return map[string]int{
		"memories":  p.memories.index.Live(),
		"tables":    p.tables.index.Live(),
		"stacks":    p.stacks.index.Live(),
		"instances": p.records.index.Live(),
	}
}

// Close releases all four class reservations. Slots still held become
// invalid; Close is the teardown of last resort, not a substitute for
// releasing instances.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return errors.Closed(errors.PhaseRelease, "pool")
	}
	var firstErr error
	for _, cp := range []*classPool{p.memories, p.tables, p.stacks, p.records} {
		if err := cp.region.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.log.Info("pool released")
	return firstErr
}

func (p *Pool) checkOpen(phase errors.Phase) error {
	if p.closed.Load() {
		return errors.Closed(phase, "pool")
	}
	return nil
}
