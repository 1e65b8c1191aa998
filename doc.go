// Package slab implements a slab allocator for fixed-size objects.
//
// A Cache is parameterised by an object size and alignment and hands out
// raw, correctly aligned storage for individual objects of that size. The
// cache carves slabs — large, page-aligned regions — out of an underlying
// MemoryBackend and tracks a free list per slab so that allocation and
// deallocation are O(1) amortised.
//
// The cache is not safe for concurrent use. A caller that serves allocations
// from more than one goroutine must wrap the Cache in its own mutex; no
// locking is attempted internally.
package slab
