package main

import (
	"sync/atomic"
	"time"

	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/runtime"
)

// stats is the shared scoreboard between churn workers and the monitor.
type stats struct {
	cycles      atomic.Uint64
	traps       atomic.Uint64
	exhaustions atomic.Uint64
	failures    atomic.Uint64
}

func newStats() *stats {
	return &stats{}
}

// churn runs instantiate / execute / teardown cycles until stop closes.
// Each cycle writes through the instance's memory, grows it once and raises
// the occasional deliberate out-of-bounds access so trap counts move.
func churn(mod *runtime.Module, s *stats, hold time.Duration, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		inst, err := mod.Instantiate()
		if err != nil {
			if errors.IsResourceExhausted(err) {
				s.exhaustions.Add(1)
				time.Sleep(hold / 2)
				continue
			}
			s.failures.Add(1)
			return
		}

		n := s.cycles.Add(1)
		res := inst.EnterGuest(func(ctx *runtime.GuestContext) any {
			mem := ctx.Memory(0)
			for off := uint64(0); off < mem.Size(); off += 4096 {
				mem.Unguarded()[off] = byte(n)
			}
			if n%7 == 0 {
				_ = mem.Grow(1)
			}
			if n%31 == 0 {
				// Poke one byte past the committed edge: classified trap,
				// instance survives as an object and tears down normally.
				mem.Unguarded()[mem.Size()] = 1
			}
			return nil
		})
		if res.Trap != nil {
			s.traps.Add(1)
		}

		time.Sleep(hold)
		if err := inst.Close(); err != nil {
			s.failures.Add(1)
			return
		}
	}
}
