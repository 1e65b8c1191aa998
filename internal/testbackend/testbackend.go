// Package testbackend provides MemoryBackend test doubles that play the
// role of the teacher's generated mocks_metadata package (there is no
// Vulkan driver surface here to generate a gomock double against, so these
// are hand-written instead): a call-counting wrapper, used to check how
// many slab and side-table operations a Cache makes (spec §8 scenario 2
// and the multi-page Small case), a fails-after-N wrapper, for scenario 5
// ("backend's alloc_slab returns null on third request"), and a
// mode-A-only backend, for scenario 4, that proves a Small single-page
// Cache never touches the side-table methods at all.
package testbackend

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/kmalloc/slab"
)

// Recording wraps another MemoryBackend and counts every call made to it,
// so a test can assert exactly which backend operations a Cache invoked.
type Recording struct {
	Backend slab.MemoryBackend

	AllocSlabCalls         int
	FreeSlabCalls          int
	AllocSlabInfoCalls     int
	FreeSlabInfoCalls      int
	SaveSlabInfoPtrCalls   int
	GetSlabInfoPtrCalls    int
	DeleteSlabInfoPtrCalls int
}

func (r *Recording) AllocSlab(slabSize, pageSize int) (unsafe.Pointer, error) {
	r.AllocSlabCalls++
	return r.Backend.AllocSlab(slabSize, pageSize)
}

func (r *Recording) FreeSlab(base unsafe.Pointer, slabSize, pageSize int) {
	r.FreeSlabCalls++
	r.Backend.FreeSlab(base, slabSize, pageSize)
}

func (r *Recording) AllocSlabInfo() (*slab.SlabInfo, error) {
	r.AllocSlabInfoCalls++
	return r.Backend.AllocSlabInfo()
}

func (r *Recording) FreeSlabInfo(info *slab.SlabInfo) {
	r.FreeSlabInfoCalls++
	r.Backend.FreeSlabInfo(info)
}

func (r *Recording) SaveSlabInfoPtr(pageAddr uintptr, info *slab.SlabInfo) {
	r.SaveSlabInfoPtrCalls++
	r.Backend.SaveSlabInfoPtr(pageAddr, info)
}

func (r *Recording) GetSlabInfoPtr(pageAddr uintptr) *slab.SlabInfo {
	r.GetSlabInfoPtrCalls++
	return r.Backend.GetSlabInfoPtr(pageAddr)
}

func (r *Recording) DeleteSlabInfoPtr(pageAddr uintptr) {
	r.DeleteSlabInfoPtrCalls++
	r.Backend.DeleteSlabInfoPtr(pageAddr)
}

var _ slab.MemoryBackend = (*Recording)(nil)

// FailingAfterN wraps another MemoryBackend and makes the Nth call to
// AllocSlab (1-indexed) and every call after it fail, simulating backend
// exhaustion without actually running out of host memory.
type FailingAfterN struct {
	Backend slab.MemoryBackend
	N       int

	calls int
}

func (f *FailingAfterN) AllocSlab(slabSize, pageSize int) (unsafe.Pointer, error) {
	f.calls++
	if f.calls >= f.N {
		return nil, errors.New("testbackend: simulated backend exhaustion")
	}
	return f.Backend.AllocSlab(slabSize, pageSize)
}

func (f *FailingAfterN) FreeSlab(base unsafe.Pointer, slabSize, pageSize int) {
	f.Backend.FreeSlab(base, slabSize, pageSize)
}

func (f *FailingAfterN) AllocSlabInfo() (*slab.SlabInfo, error) {
	return f.Backend.AllocSlabInfo()
}

func (f *FailingAfterN) FreeSlabInfo(info *slab.SlabInfo) {
	f.Backend.FreeSlabInfo(info)
}

func (f *FailingAfterN) SaveSlabInfoPtr(pageAddr uintptr, info *slab.SlabInfo) {
	f.Backend.SaveSlabInfoPtr(pageAddr, info)
}

func (f *FailingAfterN) GetSlabInfoPtr(pageAddr uintptr) *slab.SlabInfo {
	return f.Backend.GetSlabInfoPtr(pageAddr)
}

func (f *FailingAfterN) DeleteSlabInfoPtr(pageAddr uintptr) {
	f.Backend.DeleteSlabInfoPtr(pageAddr)
}

var _ slab.MemoryBackend = (*FailingAfterN)(nil)

// ModeAOnly is a MemoryBackend that serves only pageSize-aligned, single-page
// slabs, the way a host running exclusively Small/single-page caches would.
// It embeds slab.BackendBase, so a Cache that ever falls back to resolution
// mode B or C against it panics instead of silently succeeding: the point is
// to prove mode A never reaches the backend's side-table methods at all.
type ModeAOnly struct {
	mu   sync.Mutex
	live map[uintptr][]byte

	slab.BackendBase
}

func NewModeAOnly() *ModeAOnly {
	return &ModeAOnly{live: make(map[uintptr][]byte)}
}

func (m *ModeAOnly) AllocSlab(slabSize, pageSize int) (unsafe.Pointer, error) {
	raw := make([]byte, slabSize+pageSize)
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + uintptr(pageSize) - 1) &^ (uintptr(pageSize) - 1)

	m.mu.Lock()
	m.live[aligned] = raw
	m.mu.Unlock()

	return unsafe.Pointer(aligned), nil
}

func (m *ModeAOnly) FreeSlab(base unsafe.Pointer, slabSize, pageSize int) {
	m.mu.Lock()
	delete(m.live, uintptr(base))
	m.mu.Unlock()
}

var _ slab.MemoryBackend = (*ModeAOnly)(nil)
