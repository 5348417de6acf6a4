package trap

import (
	"sync"
	"testing"

	isolate "github.com/wippyai/isolate"
)

func TestRegistryClassifyBoundaries(t *testing.T) {
	reg := NewRegistry()
	reg.AddGuard(0x1000, 0x2000, MemoryOutOfBounds)

	if _, ok := reg.Classify(0xFFF); ok {
		t.Error("below range must not classify")
	}
	if code, ok := reg.Classify(0x1000); !ok || code != MemoryOutOfBounds {
		t.Error("range start must classify")
	}
	if code, ok := reg.Classify(0x1FFF); !ok || code != MemoryOutOfBounds {
		t.Error("last byte must classify")
	}
	if _, ok := reg.Classify(0x2000); ok {
		t.Error("range end is exclusive")
	}
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	reg.AddGuard(0x1000, 0x2000, MemoryOutOfBounds)
	reg.AddGuard(0x3000, 0x4000, TableOutOfBounds)
	reg.RemoveGuard(0x1000)

	if _, ok := reg.Classify(0x1800); ok {
		t.Error("removed range must not classify")
	}
	if code, ok := reg.Classify(0x3800); !ok || code != TableOutOfBounds {
		t.Error("remaining range lost")
	}
}

func TestRegistryStacksBeforeNothing(t *testing.T) {
	reg := NewRegistry()
	reg.AddStackGuard(0x7000, 0x8000)

	code, ok := reg.Classify(0x7123)
	if !ok || code != StackOverflow {
		t.Errorf("got %v/%v, want StackOverflow", code, ok)
	}
}

func TestRegistryCodeRanges(t *testing.T) {
	reg := NewRegistry()
	ranges := []isolate.CodeRange{{Start: 0x10000, End: 0x20000}}
	reg.AddCode(ranges)

	if !reg.CodeContains(0x15000) {
		t.Error("pc inside registered code")
	}
	if reg.CodeContains(0x20000) {
		t.Error("end is exclusive")
	}

	reg.RemoveCode(ranges)
	if reg.CodeContains(0x15000) {
		t.Error("pc after removal")
	}
}

// Classification on one goroutine races registration on another; the
// registry must stay internally consistent throughout.
func TestRegistryConcurrentMutation(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		base := uintptr(0x100000 * (w + 1))
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				reg.AddGuard(base, base+0x1000, MemoryOutOfBounds)
				reg.RemoveGuard(base)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				reg.Classify(base + 0x800)
			}
		}()
	}
	wg.Wait()
}
