// Package engine bridges the pooling allocator into wazero.
//
// wazero normally owns linear memory itself: each instantiation mallocs or
// mmaps a buffer and grows it by reallocation. This package replaces that
// with the slot pool, so every wazero instance draws its linear memory from
// a pre-reserved, guard-separated slot and returns it on close.
//
// # Architecture
//
// The package provides three types:
//
//	Engine   - wraps a wazero.Runtime configured with the pool allocator
//	Module   - a compiled core module, instantiable many times
//	Instance - one running instance backed by pooled memory
//
// The glue is wazero's experimental.MemoryAllocator hook: Allocate(min, max)
// claims a pool slot sized for max and hands wazero a LinearMemory whose
// Reallocate commits further pages of the same slot. The buffer's address
// never changes across growth, and Free returns the slot scrubbed.
//
// # Limits
//
// A module whose declared maximum exceeds the pool's memory slot size is
// rejected by wazero's memory limit before the allocator is consulted:
// Engine configures WithMemoryLimitPages from the pool geometry. Pool
// exhaustion surfaces as an instantiation error.
//
// # Thread Safety
//
// Engine and Module are safe for concurrent use. Instance is not; one
// goroutine drives an instance at a time.
package engine
