// poolmon stress-tests a slot pool and renders its occupancy live: workers
// churn instantiate/execute/teardown cycles while the TUI shows per-class
// slot usage, trap counts and exhaustion pressure.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	isolate "github.com/wippyai/isolate"
	"github.com/wippyai/isolate/cow"
	"github.com/wippyai/isolate/pool"
	"github.com/wippyai/isolate/runtime"
)

func main() {
	var (
		instances   = flag.Int("instances", 16, "Pool capacity per resource class")
		slotMiB     = flag.Uint64("slot-mib", 16, "Memory slot size in MiB")
		workers     = flag.Int("workers", 8, "Concurrent churn workers")
		holdMs      = flag.Int("hold-ms", 50, "How long each worker holds an instance")
		eager       = flag.Bool("eager", false, "Force eager copying instead of copy-on-write")
		metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	)
	flag.Parse()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "poolmon needs a terminal; use -metrics for headless runs")
		os.Exit(1)
	}

	if err := run(*instances, *slotMiB, *workers, *holdMs, *eager, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(instances int, slotMiB uint64, workers, holdMs int, eager bool, metricsAddr string) error {
	cfg := pool.Config{
		Memories:            pool.ClassConfig{Capacity: instances, SlotSize: slotMiB << 20},
		Tables:              pool.ClassConfig{Capacity: instances, SlotSize: 1 << 20},
		Stacks:              pool.ClassConfig{Capacity: instances, SlotSize: 1 << 20},
		Instances:           pool.ClassConfig{Capacity: instances, SlotSize: 64 * 1024},
		MemoriesPerInstance: 1,
		TablesPerInstance:   1,
		GuardSize:           1 << 20,
	}
	if eager {
		cfg.Policy = cow.PolicyEagerCopy
	}

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		cfg.Metrics = reg
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			_ = http.ListenAndServe(metricsAddr, mux)
		}()
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close()

	mod, err := rt.CompileModule(&isolate.ModuleDescription{
		Name:     "churn",
		Memories: []isolate.MemoryDescriptor{{MinPages: 1, MaxPages: 16}},
		Tables:   []isolate.TableDescriptor{{MinElems: 8, MaxElems: 64}},
		Segments: []isolate.DataSegment{{Offset: 0, Data: []byte("poolmon seed data")}},
	})
	if err != nil {
		return fmt.Errorf("compile module: %w", err)
	}
	defer mod.Close()

	stats := newStats()
	stop := make(chan struct{})
	for w := 0; w < workers; w++ {
		go churn(mod, stats, time.Duration(holdMs)*time.Millisecond, stop)
	}
	defer close(stop)

	return runMonitor(rt.Pool(), stats, instances)
}
