package slab

import (
	"io"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Config parameterises a Cache. SlabSize and PageSize must be powers of
// two; SlabSize must be a positive multiple of PageSize. Align, if zero,
// defaults to the natural alignment of T.
type Config struct {
	SlabSize int
	PageSize int
	SizeType SizeType
	Backend  MemoryBackend

	// Align overrides the object alignment; must be a power of two not
	// exceeding PageSize. Zero means use T's natural alignment.
	Align int

	// Logger receives slab lifecycle and backend-failure events. Nil
	// defaults to a logger that discards everything.
	Logger *slog.Logger

	// DisableDebugAssertions turns off the Free-path sanity checks from
	// spec §7 (remainder-zero, in-range index, not-already-free). Leave
	// false (the default) unless a caller has been validated in testing
	// and the checks need shaving off the hot path.
	DisableDebugAssertions bool
}

// Cache is a slab allocator specialised to objects of type T. It owns a
// population of slabs and is not safe for concurrent use (spec §5); wrap it
// in an external mutex if shared across goroutines.
type Cache[T any] struct {
	backend MemoryBackend
	logger  *slog.Logger

	slabSize, pageSize      int
	objectSize, objectAlign int
	debugAssertions         bool
	layout                  layout

	free, partial, full slabList

	// pageSlabs backs resolution mode A (Small, slab size == page size):
	// a cache-local map from page address to SlabInfo, maintained without
	// ever calling into the backend's side table. See DESIGN.md
	// "Embedded metadata placement" for why this replaces literal
	// in-slab struct embedding.
	pageSlabs map[uintptr]*SlabInfo

	closed bool
}

// New validates cfg and precomputes the slab layout. No slabs are
// allocated eagerly (spec §4.2).
func New[T any](cfg Config) (*Cache[T], error) {
	if cfg.Backend == nil {
		return nil, errors.New("slab: Config.Backend must not be nil")
	}

	var zero T
	objectSize := int(unsafe.Sizeof(zero))
	if objectSize == 0 {
		objectSize = 1
	}
	objectAlign := cfg.Align
	if objectAlign == 0 {
		objectAlign = int(unsafe.Alignof(zero))
		if objectAlign == 0 {
			objectAlign = 1
		}
	}

	l, err := computeLayout(cfg.SlabSize, cfg.PageSize, objectSize, objectAlign, cfg.SizeType)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard))
	}

	c := &Cache[T]{
		backend:         cfg.Backend,
		logger:          logger,
		slabSize:        cfg.SlabSize,
		pageSize:        cfg.PageSize,
		objectSize:      objectSize,
		objectAlign:     objectAlign,
		debugAssertions: !cfg.DisableDebugAssertions,
		layout:          l,
	}
	if l.mode == modeEmbedded {
		c.pageSlabs = make(map[uintptr]*SlabInfo)
	}
	return c, nil
}

// Capacity returns the number of object slots per slab, as computed once
// at construction (spec §4.1).
func (c *Cache[T]) Capacity() int { return c.layout.capacity }

// Alloc returns a pointer to freshly allocated, correctly aligned storage
// for one T. On backend exhaustion it returns ErrBackendExhausted and
// leaves every list unchanged (spec §4.2, §7).
func (c *Cache[T]) Alloc() (*T, error) {
	if c.closed {
		return nil, ErrClosed
	}

	s, inPartial, err := c.slabForAlloc()
	if err != nil {
		return nil, err
	}

	idx := s.popSlot()
	addr := s.base + uintptr(c.layout.firstSlotOffset) + uintptr(idx)*uintptr(c.layout.slotSize)

	switch {
	case s.isFull():
		if inPartial {
			c.partial.unlink(s)
		}
		c.full.pushFront(s)
	case !inPartial:
		c.partial.pushFront(s)
	}

	return (*T)(unsafe.Pointer(addr)), nil
}

// slabForAlloc implements step 1 of spec §4.2 Alloc: pick partial's head,
// else free's head (detached, to be relinked by the caller once its final
// state is known), else grow a new slab (also detached from free).
func (c *Cache[T]) slabForAlloc() (s *SlabInfo, wasPartial bool, err error) {
	if !c.partial.empty() {
		return c.partial.head, true, nil
	}
	if !c.free.empty() {
		s := c.free.head
		c.free.unlink(s)
		return s, false, nil
	}
	s, err = c.grow()
	if err != nil {
		return nil, false, err
	}
	c.free.unlink(s)
	return s, false, nil
}

// Free returns ptr, previously obtained from Alloc on this cache, to its
// slab's free list (spec §4.2 Free). Double frees, foreign pointers and
// misaligned pointers are caller contract violations (spec §7). A nil or
// foreign pointer is always reported as ErrMisuse; misaligned pointers,
// out-of-range slots and double frees are reported as ErrMisuse unless
// Config.DisableDebugAssertions is set.
func (c *Cache[T]) Free(ptr *T) error {
	if c.closed {
		return ErrClosed
	}
	if ptr == nil {
		return errors.Wrap(ErrMisuse, "slab: Free(nil)")
	}

	addr := uintptr(unsafe.Pointer(ptr))
	s := c.resolve(addr)
	if s == nil {
		return errors.Wrapf(ErrMisuse, "slab: pointer %#x is not owned by this cache", addr)
	}

	rel := addr - (s.base + uintptr(c.layout.firstSlotOffset))
	idx := int(rel / uintptr(c.layout.slotSize))

	if c.debugAssertions {
		if rel%uintptr(c.layout.slotSize) != 0 {
			return errors.Wrapf(ErrMisuse, "slab: pointer %#x is misaligned for slot size %d", addr, c.layout.slotSize)
		}
		if idx < 0 || idx >= s.capacity {
			return errors.Wrapf(ErrMisuse, "slab: slot index %d out of range [0, %d)", idx, s.capacity)
		}
		if c.slotIsFree(s, idx) {
			return errors.Wrapf(ErrMisuse, "slab: double free of pointer %#x", addr)
		}
	}

	wasFull := s.isFull()
	s.pushSlot(idx)

	switch {
	case wasFull:
		c.full.unlink(s)
		if s.isEmpty() {
			c.free.pushFront(s)
		} else {
			c.partial.pushFront(s)
		}
	case s.isEmpty():
		c.partial.unlink(s)
		c.free.pushFront(s)
	}

	return nil
}

// slotIsFree scans s's free-list stack for idx. Only used by the debug
// double-free assertion; O(capacity) is acceptable off the hot path.
func (c *Cache[T]) slotIsFree(s *SlabInfo, idx int) bool {
	for i := 0; i <= s.freeTop; i++ {
		if int(s.freeList[i]) == idx {
			return true
		}
	}
	return false
}

// resolve locates the SlabInfo owning addr, per the resolution mode fixed
// at construction (spec §4.4).
func (c *Cache[T]) resolve(addr uintptr) *SlabInfo {
	pageAddr := addr &^ uintptr(c.pageSize-1)

	var s *SlabInfo
	switch c.layout.mode {
	case modeEmbedded:
		s = c.pageSlabs[pageAddr]
	default:
		s = c.backend.GetSlabInfoPtr(pageAddr)
	}

	if s == nil || s.owner != unsafe.Pointer(c) {
		return nil
	}
	return s
}

// grow asks the backend for a new slab, initialises its SlabInfo, records
// page->SlabInfo mappings as required by the resolution mode, and links it
// into free (spec §4.3 grow).
func (c *Cache[T]) grow() (*SlabInfo, error) {
	base, err := c.backend.AllocSlab(c.slabSize, c.pageSize)
	if err != nil {
		c.logger.Warn("slab: backend could not supply a new slab", "error", err)
		return nil, errors.Wrap(ErrBackendExhausted, err.Error())
	}
	baseAddr := uintptr(base)

	var info *SlabInfo
	switch c.layout.mode {
	case modeExternal:
		info, err = c.backend.AllocSlabInfo()
		if err != nil {
			c.backend.FreeSlab(base, c.slabSize, c.pageSize)
			return nil, errors.Wrap(ErrBackendExhausted, err.Error())
		}
		*info = *newSlabInfo(unsafe.Pointer(c), baseAddr, c.layout.capacity)
	default:
		info = newSlabInfo(unsafe.Pointer(c), baseAddr, c.layout.capacity)
	}

	switch c.layout.mode {
	case modeEmbedded:
		c.pageSlabs[baseAddr] = info
	case modeSideTable, modeExternal:
		for p := 0; p < c.layout.pagesPerSlab; p++ {
			c.backend.SaveSlabInfoPtr(baseAddr+uintptr(p*c.pageSize), info)
		}
	}

	c.free.pushFront(info)
	c.logger.Debug("slab: grew new slab", "base", baseAddr, "capacity", c.layout.capacity)
	return info, nil
}

// shrinkOne destroys an empty slab: the inverse of grow (spec §4.3
// shrink_one).
func (c *Cache[T]) shrinkOne(s *SlabInfo) {
	baseAddr := s.base

	switch c.layout.mode {
	case modeEmbedded:
		delete(c.pageSlabs, baseAddr)
	case modeSideTable, modeExternal:
		for p := 0; p < c.layout.pagesPerSlab; p++ {
			c.backend.DeleteSlabInfoPtr(baseAddr + uintptr(p*c.pageSize))
		}
	}

	if c.layout.mode == modeExternal {
		c.backend.FreeSlabInfo(s)
	}

	c.backend.FreeSlab(unsafe.Pointer(baseAddr), c.slabSize, c.pageSize)
	c.logger.Debug("slab: destroyed empty slab", "base", baseAddr)
}

// Reap destroys every currently-empty slab and returns how many were
// destroyed. The baseline policy (spec §4.2 step 4, §9 open question) is to
// retain empty slabs for reuse; Reap is the explicit opt-in to release
// them.
func (c *Cache[T]) Reap() int {
	if c.closed {
		return 0
	}

	var bases []uintptr
	for s := c.free.head; s != nil; {
		next := s.next
		bases = append(bases, s.base)
		c.free.unlink(s)
		c.shrinkOne(s)
		s = next
	}

	if len(bases) > 1 {
		slices.Sort(bases)
	}
	if len(bases) > 0 {
		c.logger.Debug("slab: reaped empty slabs", "count", len(bases), "bases", bases)
	}
	return len(bases)
}

// Close destroys every slab, including partially and fully in-use ones.
// The caller is responsible for ensuring no outstanding objects remain
// (spec §4.2 Destruction); Close does not check for that.
func (c *Cache[T]) Close() error {
	if c.closed {
		return nil
	}
	for _, list := range []*slabList{&c.free, &c.partial, &c.full} {
		for s := list.head; s != nil; {
			next := s.next
			list.unlink(s)
			c.shrinkOne(s)
			s = next
		}
	}
	c.closed = true
	return nil
}
