// Package cow builds shareable memory images for a module's initial linear
// memory and instantiates them into pool slots without copying.
//
// On Linux an Image keeps its initial bytes in a sealed memfd. Instantiating
// maps that memfd MAP_PRIVATE into the target region: every instance of the
// same image shares physical pages until it writes one, at which point the
// kernel materializes a private copy transparently. Pages the guest never
// touches stay shared across all instances.
//
// Where memfd is unavailable, or when the embedder forces PolicyEagerCopy,
// instantiation commits the range and copies the initial segments into it.
// Slower, observably identical: the isolation tests in the pool package run
// against both paths.
//
// An Image is immutable after Build and safe to instantiate from any number
// of goroutines concurrently. Its lifetime follows the compiled module that
// produced it; Close releases the backing once.
package cow
