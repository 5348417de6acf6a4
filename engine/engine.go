package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	isolate "github.com/wippyai/isolate"
	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/pool"
)

// Engine wraps a wazero runtime whose linear memories come from a slot pool.
type Engine struct {
	runtime wazero.Runtime
	pool    *pool.Pool
	alloc   experimental.MemoryAllocator
	log     *zap.Logger
}

// Config holds configuration for engine creation.
type Config struct {
	// Pool supplies the memory slots. Required.
	Pool *pool.Pool

	// Logger defaults to the package logger (nop unless set).
	Logger *zap.Logger
}

// New creates an engine over cfg.Pool. The wazero memory limit is derived
// from the pool's slot size, so modules that declare more are rejected at
// compile time rather than reaching the allocator.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Pool == nil {
		return nil, errors.Configuration("engine requires a pool")
	}
	if cfg.Logger == nil {
		cfg.Logger = Logger()
	}

	limitPages := cfg.Pool.Config().Memories.SlotSize / isolate.PageSize
	runtimeCfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(uint32(limitPages)).
		WithCloseOnContextDone(true)

	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		pool:    cfg.Pool,
		alloc:   NewAllocator(cfg.Pool),
		log:     cfg.Logger,
	}, nil
}

// LoadModule compiles a core wasm binary.
func (e *Engine) LoadModule(ctx context.Context, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCompile, errors.KindInvalidInput, err, "compile module")
	}
	return &Module{engine: e, compiled: compiled}, nil
}

// Close tears the runtime down. Instances must already be closed.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Module is a compiled core module bound to one engine.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// Instantiate creates one instance named name, drawing its linear memory
// from the engine's pool. Pool exhaustion surfaces as a recoverable
// resource-exhausted error.
func (m *Module) Instantiate(ctx context.Context, name string) (inst *Instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			ae, ok := r.(allocError)
			if !ok {
				panic(r)
			}
			inst, err = nil, ae.err
		}
	}()

	ctx = experimental.WithMemoryAllocator(ctx, m.engine.alloc)
	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled,
		wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInstantiate, errors.KindInvalidInput, err, "instantiate module")
	}

	m.engine.log.Debug("instance created",
		zap.String("name", name),
		zap.String("module", m.compiled.Name()),
	)
	return &Instance{engine: m.engine, mod: mod}, nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// Instance is one running wazero instance on pooled memory.
type Instance struct {
	engine *Engine
	mod    api.Module
}

// Call invokes the exported function fn with params in wazero's flat
// representation.
func (i *Instance) Call(ctx context.Context, fn string, params ...uint64) ([]uint64, error) {
	f := i.mod.ExportedFunction(fn)
	if f == nil {
		return nil, errors.InvalidInput(errors.PhaseExecute, "no exported function %q", fn)
	}
	// Guest traps come back as wazero errors; pass them through unwrapped so
	// callers keep the full trap description.
	return f.Call(ctx, params...)
}

// Memory returns the instance's exported memory, or nil.
func (i *Instance) Memory() api.Memory {
	return i.mod.Memory()
}

// Close tears the instance down; its memory slot returns to the pool.
func (i *Instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}
