// Package memheap implements a portable slab.MemoryBackend backed by plain
// Go byte slices. It has no OS dependency and is the backend most of the
// slab package's cache tests run against; it also suits hosts that embed a Cache
// inside a larger Go process without wanting a raw mmap.
//
// Grounded on other_examples/devansh42-slab__slab.go and
// other_examples/couchbase-go-slab__arena.go, which both back slab/arena
// buffers with plain []byte rather than raw OS memory.
package memheap

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/kmalloc/slab"

	"github.com/kmalloc/slab/internal/sidetable"
)

// Backend is a slab.MemoryBackend whose slab pages are ordinary Go byte
// slices, over-allocated and offset so the returned address is page
// aligned. Because the backing slices live on the Go heap, Backend keeps a
// strong reference to every outstanding slab (in live) so that the garbage
// collector never reclaims memory a Cache still addresses purely by
// uintptr.
type Backend struct {
	mu   sync.Mutex
	live map[uintptr][]byte

	infoPool sync.Pool
	table    *sidetable.Table
}

// New returns an empty Backend. sideTableHint sizes the initial page-map
// capacity; zero picks a small default.
func New(sideTableHint uint32) *Backend {
	return &Backend{
		live:  make(map[uintptr][]byte),
		table: sidetable.New(sideTableHint),
		infoPool: sync.Pool{
			New: func() any { return new(slab.SlabInfo) },
		},
	}
}

func (b *Backend) AllocSlab(slabSize, pageSize int) (unsafe.Pointer, error) {
	raw := make([]byte, slabSize+pageSize)
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + uintptr(pageSize) - 1) &^ (uintptr(pageSize) - 1)

	b.mu.Lock()
	b.live[aligned] = raw
	b.mu.Unlock()

	return unsafe.Pointer(aligned), nil
}

func (b *Backend) FreeSlab(base unsafe.Pointer, slabSize, pageSize int) {
	b.mu.Lock()
	delete(b.live, uintptr(base))
	b.mu.Unlock()
}

func (b *Backend) AllocSlabInfo() (*slab.SlabInfo, error) {
	info, ok := b.infoPool.Get().(*slab.SlabInfo)
	if !ok || info == nil {
		return nil, errors.New("memheap: SlabInfo pool returned an unexpected type")
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
