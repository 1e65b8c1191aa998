//go:build linux

package mmapbackend_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/kmalloc/slab"
	"github.com/kmalloc/slab/internal/testbackend"
	"github.com/kmalloc/slab/mmapbackend"
)

type obj2048 struct{ _ [2048]byte }
type obj64 struct{ _ [64]byte }

// TestBackend_AllocSlabIsPageAligned exercises the real mmap(2) round trip:
// AllocSlab's own alignment assertion (mmap_linux.go's "mmap returned
// unaligned address" check) only ever fires if this path is actually run,
// since the Go memheap backend never takes it.
func TestBackend_AllocSlabIsPageAligned(t *testing.T) {
	b := mmapbackend.New(0)
	const pageSize = 4096

	base, err := b.AllocSlab(pageSize*2, pageSize)
	require.NoError(t, err)
	require.NotNil(t, base)
	require.Zero(t, uintptr(base)%pageSize)

	b.FreeSlab(base, pageSize*2, pageSize)
}

// TestBackend_SlabInfoPoolRoundTrip exercises the sync.Pool-backed
// AllocSlabInfo/FreeSlabInfo pair directly.
func TestBackend_SlabInfoPoolRoundTrip(t *testing.T) {
	b := mmapbackend.New(0)

	info, err := b.AllocSlabInfo()
	require.NoError(t, err)
	require.NotNil(t, info)

	b.FreeSlabInfo(info)

	again, err := b.AllocSlabInfo()
	require.NoError(t, err)
	require.NotNil(t, again)
}

// TestBackend_SideTableRoundTrip exercises Save/Get/DeleteSlabInfoPtr
// directly against the real mmap-backed Backend's embedded sidetable.Table.
func TestBackend_SideTableRoundTrip(t *testing.T) {
	b := mmapbackend.New(0)

	info := &slab.SlabInfo{}
	const pageAddr = uintptr(0x1000)

	require.Nil(t, b.GetSlabInfoPtr(pageAddr))

	b.SaveSlabInfoPtr(pageAddr, info)
	require.Same(t, info, b.GetSlabInfoPtr(pageAddr))

	b.DeleteSlabInfoPtr(pageAddr)
	require.Nil(t, b.GetSlabInfoPtr(pageAddr))

	// idempotent delete
	b.DeleteSlabInfoPtr(pageAddr)
}

// TestBackend_LargeTwoPageSlab runs a full Cache against the real mmap
// backend, mirroring cache_test.go's TestCache_LargeTwoPageSlab but proving
// the kernel-backed memory (not memheap's []byte stand-in) actually
// supports the alloc/free/resolve/reap cycle end to end.
func TestBackend_LargeTwoPageSlab(t *testing.T) {
	backend := mmapbackend.New(0)
	rec := &testbackend.Recording{Backend: backend}

	c, err := slab.New[obj2048](slab.Config{
		SlabSize: 8192,
		PageSize: 4096,
		SizeType: slab.Large,
		Align:    16,
		Backend:  rec,
	})
	require.NoError(t, err)
	require.Equal(t, 4, c.Capacity())

	ptrs := make([]*obj2048, 4)
	for i := range ptrs {
		p, err := c.Alloc()
		require.NoError(t, err)
		ptrs[i] = p
	}
	require.Equal(t, 1, rec.AllocSlabCalls)
	require.Equal(t, 2, rec.SaveSlabInfoPtrCalls)

	for _, p := range ptrs {
		require.NoError(t, c.Free(p))
	}
	require.NoError(t, c.Validate())

	n := c.Reap()
	require.Equal(t, 1, n)
	require.Equal(t, 2, rec.DeleteSlabInfoPtrCalls)
	require.Equal(t, 1, rec.FreeSlabCalls)
}

// TestBackend_SmallSinglePageSmoke runs resolution mode A (no side table
// involvement at all) against the real mmap backend.
func TestBackend_SmallSinglePageSmoke(t *testing.T) {
	c, err := slab.New[obj64](slab.Config{
		SlabSize: 4096,
		PageSize: 4096,
		SizeType: slab.Small,
		Align:    8,
		Backend:  mmapbackend.New(0),
	})
	require.NoError(t, err)

	cap := c.Capacity()
	ptrs := make([]*obj64, 0, cap)
	for i := 0; i < cap; i++ {
		p, err := c.Alloc()
		require.NoError(t, err)
		require.Zero(t, uintptr(unsafe.Pointer(p))%8)
		ptrs = append(ptrs, p)
	}
	require.NoError(t, c.Validate())

	for _, p := range ptrs {
		require.NoError(t, c.Free(p))
	}
	require.NoError(t, c.Validate())

	require.NoError(t, c.Close())
}
