package slab

import "github.com/cockroachdb/errors"

// Configuration errors, returned from New when the supplied parameters
// cannot produce a valid slab layout.
var (
	ErrInvalidPageSize  = errors.New("slab: page size must be a non-zero power of two")
	ErrInvalidSlabSize  = errors.New("slab: slab size must be a positive power-of-two multiple of the page size")
	ErrInvalidAlignment = errors.New("slab: object alignment must be a power of two not exceeding the page size")
	ErrZeroCapacity     = errors.New("slab: computed layout leaves room for zero objects per slab")
)

// ErrBackendExhausted is returned by Alloc when the backend cannot supply a
// new slab. No cache state is mutated when this is returned.
var ErrBackendExhausted = errors.New("slab: backend could not supply a new slab")

// ErrMisuse is wrapped around every debug assertion failure raised by Free.
// It indicates a caller contract violation (double free, foreign pointer,
// misaligned pointer) rather than a condition the cache can recover from.
var ErrMisuse = errors.New("slab: misuse of cache API detected")

// ErrClosed is returned by Alloc and Free once the cache has been closed.
var ErrClosed = errors.New("slab: cache is closed")
