package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	isolate "github.com/wippyai/isolate"
	"github.com/wippyai/isolate/cow"
	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/trap"
	"github.com/wippyai/isolate/vmem"
)

// ClassConfig fixes the geometry of one resource class: how many slots and
// how large each is. Both are fixed at pool construction and never grow.
type ClassConfig struct {
	// Capacity is the number of slots, the hard bound on concurrent
	// holders of this class.
	Capacity int
	// SlotSize is the per-slot reservation in bytes, rounded up to the
	// host page size. For memories it must cover the largest declared
	// maximum the embedder intends to load.
	SlotSize uint64
}

// Config describes a Pool. Worst-case module limits, not per-module needs,
// size the slots: a module whose declared maximum does not fit is rejected
// at load time.
type Config struct {
	// Memories, Tables, Stacks and Instances configure the four resource
	// classes. Instances slots hold per-instance record scratch space.
	Memories  ClassConfig
	Tables    ClassConfig
	Stacks    ClassConfig
	Instances ClassConfig

	// MemoriesPerInstance and TablesPerInstance bound how many slots of
	// each class a single instance may bind.
	MemoriesPerInstance int
	TablesPerInstance   int

	// GuardSize is the inaccessible gap between adjacent slots, rounded
	// up to the host page size. It must be at least one page; the pool
	// refuses to trade guards away for density.
	GuardSize uint64

	// Policy selects copy-on-write versus forced eager copying when
	// memory images are bound into slots.
	Policy cow.Policy

	// Registry receives slot guard ranges for fault classification. Nil
	// means the pool constructs its own.
	Registry *trap.Registry

	// Logger is used for lifecycle logging. Nil means no-op.
	Logger *zap.Logger

	// Metrics optionally registers the pool's collectors.
	Metrics prometheus.Registerer
}

// DefaultConfig returns a pool geometry suitable for running modules with
// up to a 4 GiB declared maximum memory: 64 instances, 4 GiB memory slots
// (address space only), 1 MiB stacks and 32 MiB guards.
func DefaultConfig() Config {
	return Config{
		Memories:            ClassConfig{Capacity: 64, SlotSize: 4 << 30},
		Tables:              ClassConfig{Capacity: 64, SlotSize: 1 << 20},
		Stacks:              ClassConfig{Capacity: 64, SlotSize: 1 << 20},
		Instances:           ClassConfig{Capacity: 64, SlotSize: 64 * 1024},
		MemoriesPerInstance: 1,
		TablesPerInstance:   1,
		GuardSize:           32 << 20,
	}
}

// Validate normalizes the configuration (page alignment) and rejects
// geometries the pool cannot honor.
func (c *Config) Validate() error {
	page := vmem.PageSize()

	if c.GuardSize == 0 {
		return errors.New(errors.PhaseConfig, errors.KindConfiguration).
			Detail("guard size must be at least one page; running without guards is not supported").
			Build()
	}
	c.GuardSize = vmem.PageAlign(c.GuardSize)

	for _, cl := range []struct {
		name string
		cfg  *ClassConfig
	}{
		{"memories", &c.Memories},
		{"tables", &c.Tables},
		{"stacks", &c.Stacks},
		{"instances", &c.Instances},
	} {
		if cl.cfg.Capacity <= 0 {
			return errors.New(errors.PhaseConfig, errors.KindConfiguration).
				Class(cl.name).
				Detail("capacity must be positive").
				Build()
		}
		if cl.cfg.SlotSize == 0 {
			return errors.New(errors.PhaseConfig, errors.KindConfiguration).
				Class(cl.name).
				Detail("slot size must be positive").
				Build()
		}
		cl.cfg.SlotSize = vmem.PageAlign(cl.cfg.SlotSize)
	}

	if c.MemoriesPerInstance <= 0 {
		c.MemoriesPerInstance = 1
	}
	if c.TablesPerInstance <= 0 {
		c.TablesPerInstance = 1
	}
	if c.Stacks.SlotSize < 2*page {
		return errors.New(errors.PhaseConfig, errors.KindConfiguration).
			Class("stacks").
			Detail("stack slots need at least two pages").
			Build()
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Registry == nil {
		c.Registry = trap.NewRegistry()
	}
	return nil
}

// CheckModule rejects a module whose declared limits exceed this pool's
// fixed geometry. Called at load time so violations never reach fault time.
func (c *Config) CheckModule(desc *isolate.ModuleDescription) error {
	if len(desc.Memories) > c.MemoriesPerInstance {
		return errors.Configuration("module declares %d memories, pool allows %d per instance",
			len(desc.Memories), c.MemoriesPerInstance)
	}
	if len(desc.Tables) > c.TablesPerInstance {
		return errors.Configuration("module declares %d tables, pool allows %d per instance",
			len(desc.Tables), c.TablesPerInstance)
	}
	for i, m := range desc.Memories {
		maxBytes := m.MaxPages * isolate.PageSize
		if m.MaxPages == 0 {
			maxBytes = 1 << 32 // no declared maximum: needs the full 32-bit space
		}
		if m.MinPages*isolate.PageSize > c.Memories.SlotSize || maxBytes > c.Memories.SlotSize {
			return errors.Configuration("memory %d declares up to %d bytes, slot size is %d",
				i, maxBytes, c.Memories.SlotSize)
		}
	}
	for i, tbl := range desc.Tables {
		maxElems := tbl.MaxElems
		if maxElems == 0 {
			maxElems = tbl.MinElems
		}
		if maxElems*tableElemSize > c.Tables.SlotSize {
			return errors.Configuration("table %d declares up to %d elements, slot holds %d",
				i, maxElems, c.Tables.SlotSize/tableElemSize)
		}
	}
	return nil
}
