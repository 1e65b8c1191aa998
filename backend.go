package slab

import "unsafe"

// MemoryBackend supplies raw slab memory, optional SlabInfo storage, and a
// page->SlabInfo side map (spec §6). The cache trusts the backend to honour
// the sizes and alignments it is asked for.
//
// AllocSlabInfo/FreeSlabInfo are only called for Large caches.
// Save/Get/DeleteSlabInfoPtr are only called in resolution modes B and C
// (spec §4.4); a backend whose caches are always Small-and-single-page may
// leave them unimplemented by embedding BackendBase.
type MemoryBackend interface {
	// AllocSlab returns a pageSize-aligned region of slabSize bytes, or an
	// error if none is available. No cache state is mutated on failure.
	AllocSlab(slabSize, pageSize int) (unsafe.Pointer, error)
	// FreeSlab returns a region previously obtained from AllocSlab.
	FreeSlab(base unsafe.Pointer, slabSize, pageSize int)

	// AllocSlabInfo returns storage for one SlabInfo. Required for Large
	// caches only.
	AllocSlabInfo() (*SlabInfo, error)
	// FreeSlabInfo returns storage obtained from AllocSlabInfo.
	FreeSlabInfo(*SlabInfo)

	// SaveSlabInfoPtr records the mapping pageAddr -> info with
	// last-write-wins semantics. Required for resolution modes B and C.
	SaveSlabInfoPtr(pageAddr uintptr, info *SlabInfo)
	// GetSlabInfoPtr returns the last mapping saved for pageAddr. Must be
	// valid for every page address the cache has saved and not yet
	// deleted.
	GetSlabInfoPtr(pageAddr uintptr) *SlabInfo
	// DeleteSlabInfoPtr removes the mapping for pageAddr. Idempotent: an
	// absent key is a no-op.
	DeleteSlabInfoPtr(pageAddr uintptr)
}

// BackendBase can be embedded by a MemoryBackend implementation that only
// ever serves Small, single-page slabs, where AllocSlabInfo and the
// page-map operations are never invoked (mode A). Embedding it turns a
// missing method into a panic with a clear message instead of a compile
// error, matching the "Required when: Large only / modes B, C" column of
// the backend contract (spec §6) rather than forcing every backend to stub
// out operations it will never see.
type BackendBase struct{}

func (BackendBase) AllocSlabInfo() (*SlabInfo, error) {
	panic("slab: backend does not support AllocSlabInfo (Large caches only)")
}

func (BackendBase) FreeSlabInfo(*SlabInfo) {
	panic("slab: backend does not support FreeSlabInfo (Large caches only)")
}

func (BackendBase) SaveSlabInfoPtr(uintptr, *SlabInfo) {
	panic("slab: backend does not support SaveSlabInfoPtr (resolution modes B/C only)")
}

func (BackendBase) GetSlabInfoPtr(uintptr) *SlabInfo {
	panic("slab: backend does not support GetSlabInfoPtr (resolution modes B/C only)")
}

func (BackendBase) DeleteSlabInfoPtr(uintptr) {
	panic("slab: backend does not support DeleteSlabInfoPtr (resolution modes B/C only)")
}
