//go:build linux

// Package mmapbackend implements a slab.MemoryBackend that carves slabs out
// of anonymous, page-aligned pages obtained directly from the kernel via
// mmap(2) — off the Go heap and therefore never garbage collected or moved,
// the closest Go analogue to the bare-metal/kernel backend spec.md §1
// targets.
//
// Grounded on golang.org/x/sys/unix, present (indirect) in every go.mod in
// the retrieval pack and promoted here to a direct, exercised dependency.
package mmapbackend

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/cockroachdb/errors"
	"github.com/kmalloc/slab"
	"github.com/kmalloc/slab/internal/sidetable"
)

// Backend mmaps one region per slab. SlabInfo storage for Large caches
// comes from a sync.Pool of ordinary Go-heap structs: the SlabInfo record
// itself is bookkeeping, not payload, so it does not need to live off-heap.
type Backend struct {
	mu sync.Mutex
	// regions keeps every outstanding mmap'd []byte referenced at the Go
	// level, mirroring memheap's "live" map: the mapping itself needs no
	// GC protection (it is off-heap), but nothing else holds the slice
	// header unix.Mmap returned, so it is kept here until FreeSlab.
	regions map[uintptr][]byte

	infoPool sync.Pool
	table    *sidetable.Table
}

// New returns an empty Backend. sideTableHint sizes the initial page-map
// capacity; zero picks a small default.
func New(sideTableHint uint32) *Backend {
	return &Backend{
		regions: make(map[uintptr][]byte),
		table:   sidetable.New(sideTableHint),
		infoPool: sync.Pool{
			New: func() any { return new(slab.SlabInfo) },
		},
	}
}

func (b *Backend) AllocSlab(slabSize, pageSize int) (unsafe.Pointer, error) {
	data, err := unix.Mmap(-1, 0, slabSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "mmapbackend: mmap")
	}

	base := uintptr(unsafe.Pointer(&data[0]))
	if base%uintptr(pageSize) != 0 {
		_ = unix.Munmap(data)
		return nil, errors.Newf("mmapbackend: mmap returned unaligned address %#x for page size %d", base, pageSize)
	}

	b.mu.Lock()
	b.regions[base] = data
	b.mu.Unlock()

	return unsafe.Pointer(base), nil
}

func (b *Backend) FreeSlab(base unsafe.Pointer, slabSize, pageSize int) {
	addr := uintptr(base)

	b.mu.Lock()
	data := b.regions[addr]
	delete(b.regions, addr)
	b.mu.Unlock()

	if data != nil {
		_ = unix.Munmap(data)
	}
}

func (b *Backend) AllocSlabInfo() (*slab.SlabInfo, error) {
	info, ok := b.infoPool.Get().(*slab.SlabInfo)
	if !ok || info == nil {
		return nil, errors.New("mmapbackend: SlabInfo pool returned an unexpected type")
	}
	return info, nil
}

func (b *Backend) FreeSlabInfo(info *slab.SlabInfo) {
	b.infoPool.Put(info)
}

func (b *Backend) SaveSlabInfoPtr(pageAddr uintptr, info *slab.SlabInfo) {
	b.table.Save(pageAddr, info)
}

func (b *Backend) GetSlabInfoPtr(pageAddr uintptr) *slab.SlabInfo {
	return b.table.Get(pageAddr)
}

func (b *Backend) DeleteSlabInfoPtr(pageAddr uintptr) {
	b.table.Delete(pageAddr)
}

var _ slab.MemoryBackend = (*Backend)(nil)
