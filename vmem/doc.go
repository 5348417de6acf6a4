// Package vmem provides thin ownership wrappers around anonymous virtual
// memory mappings: reserve address space without physical backing, commit
// and decommit page ranges, change protection, and release the reservation
// exactly once.
//
// A Region is reserved PROT_NONE with MAP_NORESERVE, so reservations cost no
// physical memory until pages are committed. This is what lets a pool
// reserve a full 32-bit guest address space plus guard per slot and still
// scale to thousands of slots.
//
// All offsets and lengths passed to Commit, Protect, Decommit and ResetAnon
// must be multiples of the host page size (see PageSize and PageAlign).
//
// Ownership is strict: whichever object holds the *Region releases it, once.
// Release after Release is reported as an error, not ignored, because it
// indicates two owners.
package vmem
