package isolate

// PageSize is the linear-memory page granularity of the bytecode format.
// Memory limits in a ModuleDescription are expressed in these pages.
const PageSize = 64 * 1024

// DataSegment describes a run of initial bytes for linear memory.
type DataSegment struct {
	Offset uint64
	Data   []byte
}

// MemoryDescriptor declares one linear memory: its initial and maximum size
// in pages. A zero MaxPages means "no declared maximum"; such a module only
// fits pools whose slot size covers the full 32-bit address range.
type MemoryDescriptor struct {
	MinPages uint64
	MaxPages uint64
}

// TableDescriptor declares one table of element references.
type TableDescriptor struct {
	MinElems uint64
	MaxElems uint64
}

// CodeRange is a half-open [Start, End) range of host addresses holding
// compiled guest code. The fault handler only classifies faults whose
// program counter falls in a registered range.
type CodeRange struct {
	Start uintptr
	End   uintptr
}

// ModuleDescription is the compiled-module summary the code generator hands
// to the allocation layer: resource limits, initial data and the code ranges
// needed for fault classification. It carries no executable code itself.
type ModuleDescription struct {
	Name       string
	Memories   []MemoryDescriptor
	Tables     []TableDescriptor
	Segments   []DataSegment
	CodeRanges []CodeRange
}

// InitialBytes returns the total extent of the initial data in bytes: the
// end offset of the highest segment, or zero when there are none.
func (d *ModuleDescription) InitialBytes() uint64 {
	var end uint64
	for _, seg := range d.Segments {
		if e := seg.Offset + uint64(len(seg.Data)); e > end {
			end = e
		}
	}
	return end
}
