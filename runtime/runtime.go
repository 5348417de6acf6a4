package runtime

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/pool"
)

// Runtime owns one pool and the modules compiled against it. It is an
// explicit object: construct as many independent runtimes as needed, each
// with its own pool, fault-classification registry and capacity.
type Runtime struct {
	pool   *pool.Pool
	log    *zap.Logger
	nextID atomic.Uint64
	closed atomic.Bool
}

// New constructs a Runtime over a freshly reserved pool.
func New(cfg pool.Config) (*Runtime, error) {
	if cfg.Logger == nil {
		cfg.Logger = Logger()
	}
	p, err := pool.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Runtime{pool: p, log: cfg.Logger}, nil
}

// Pool exposes the underlying pool, mainly for metrics and the wazero
// bridge in the engine package.
func (r *Runtime) Pool() *pool.Pool {
	return r.pool
}

// Close releases the pool. Instances still live become invalid.
func (r *Runtime) Close() error {
	if r.closed.Swap(true) {
		return errors.Closed(errors.PhaseRelease, "runtime")
	}
	return r.pool.Close()
}

func (r *Runtime) checkOpen(phase errors.Phase) error {
	if r.closed.Load() {
		return errors.Closed(phase, "runtime")
	}
	return nil
}
