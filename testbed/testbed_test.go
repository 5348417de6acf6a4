//go:build unix

// Package testbed holds cross-package integration tests: whole-stack
// scenarios driving the runtime and engine layers against shared pools
// under concurrency.
package testbed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	isolate "github.com/wippyai/isolate"
	"github.com/wippyai/isolate/engine"
	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/pool"
	"github.com/wippyai/isolate/runtime"
	"github.com/wippyai/isolate/trap"
)

func poolConfig(capacity int) pool.Config {
	return pool.Config{
		Memories:            pool.ClassConfig{Capacity: capacity, SlotSize: 1 << 20},
		Tables:              pool.ClassConfig{Capacity: capacity, SlotSize: 64 * 1024},
		Stacks:              pool.ClassConfig{Capacity: capacity, SlotSize: 128 * 1024},
		Instances:           pool.ClassConfig{Capacity: capacity, SlotSize: 64 * 1024},
		MemoriesPerInstance: 1,
		TablesPerInstance:   1,
		GuardSize:           64 * 1024,
	}
}

func demoModule(name string) *isolate.ModuleDescription {
	return &isolate.ModuleDescription{
		Name:     name,
		Memories: []isolate.MemoryDescriptor{{MinPages: 1, MaxPages: 8}},
		Tables:   []isolate.TableDescriptor{{MinElems: 4, MaxElems: 16}},
		Segments: []isolate.DataSegment{{Offset: 0, Data: []byte("seed")}},
	}
}

// Many goroutines churn instantiate / execute / teardown against one
// runtime. Capacity pressure must only ever surface as resource-exhausted
// errors, and the pool must drain completely when the churn stops.
func TestConcurrentInstanceChurn(t *testing.T) {
	rt, err := runtime.New(poolConfig(8))
	require.NoError(t, err)
	defer rt.Close()

	mod, err := rt.CompileModule(demoModule("churn"))
	require.NoError(t, err)
	defer mod.Close()

	const workers = 16
	const cycles = 50

	var exhausted, trapped atomic.Uint64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for c := 0; c < cycles; c++ {
				inst, err := mod.Instantiate()
				if err != nil {
					require.True(t, errors.IsResourceExhausted(err), "unexpected error: %v", err)
					exhausted.Add(1)
					continue
				}

				res := inst.EnterGuest(func(ctx *runtime.GuestContext) any {
					mem := ctx.Memory(0)
					seed, _ := mem.Read(0, 4)
					require.Equal(t, "seed", string(seed), "recycled slot leaked state")
					require.NoError(t, mem.Write(8, []byte{byte(w), byte(c)}))
					if c%10 == 9 {
						mem.Unguarded()[mem.Size()] = 1 // deliberate fault
					}
					return nil
				})
				if res.Trap != nil {
					require.Equal(t, trap.MemoryOutOfBounds, res.Trap.Code)
					trapped.Add(1)
				}
				require.NoError(t, inst.Close())
			}
		}(w)
	}
	wg.Wait()

	require.NotZero(t, trapped.Load(), "deliberate faults must have trapped")
	for class, n := range rt.Pool().Live() {
		require.Zero(t, n, "class %s still holds slots", class)
	}
}

// The wazero bridge and the native runtime run side by side on separate
// pools without interfering.
func TestEngineAndRuntimeSideBySide(t *testing.T) {
	ctx := context.Background()

	rt, err := runtime.New(poolConfig(4))
	require.NoError(t, err)
	defer rt.Close()

	enginePool, err := pool.New(poolConfig(4))
	require.NoError(t, err)
	defer enginePool.Close()

	eng, err := engine.New(ctx, engine.Config{Pool: enginePool})
	require.NoError(t, err)
	defer eng.Close(ctx)

	mod, err := rt.CompileModule(demoModule("native"))
	require.NoError(t, err)
	defer mod.Close()

	inst, err := mod.Instantiate()
	require.NoError(t, err)
	defer inst.Close()

	res := inst.EnterGuest(func(ctx *runtime.GuestContext) any {
		v, _ := ctx.Memory(0).Read(0, 4)
		return string(v)
	})
	require.Nil(t, res.Trap)
	require.Equal(t, "seed", res.Value)
	require.Zero(t, enginePool.Live()["memories"], "engine pool must be untouched by the native runtime")
}

// Async sessions on several instances interleave without mixing up their
// suspended state.
func TestInterleavedAsyncSessions(t *testing.T) {
	rt, err := runtime.New(poolConfig(4))
	require.NoError(t, err)
	defer rt.Close()

	mod, err := rt.CompileModule(demoModule("async"))
	require.NoError(t, err)
	defer mod.Close()

	type running struct {
		inst    *runtime.Instance
		session *runtime.CallSession
	}

	var sessions []running
	for i := 0; i < 3; i++ {
		inst, err := mod.Instantiate()
		require.NoError(t, err)
		defer inst.Close()

		id := i
		session, out := inst.StartCall(func(ctx *runtime.GuestContext) any {
			x := ctx.Suspend(fmt.Sprintf("session-%d", id)).(int)
			return id*100 + x
		})
		require.False(t, out.Done)
		require.Equal(t, fmt.Sprintf("session-%d", id), out.Value)
		sessions = append(sessions, running{inst: inst, session: session})
	}

	// Resume in reverse order: results must still track their own session.
	for i := len(sessions) - 1; i >= 0; i-- {
		out, err := sessions[i].session.Resume(7)
		require.NoError(t, err)
		require.True(t, out.Done)
		require.Nil(t, out.Trap)
		require.Equal(t, i*100+7, out.Value)
	}
}
