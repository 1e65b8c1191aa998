package slab

import "unsafe"

// slabInfoSize/slabInfoAlign describe the footprint reserved for a SlabInfo
// when sizing a Small slab's capacity (spec §4.1 rule 4). SlabInfo itself is
// an ordinary Go-heap value (see DESIGN.md, "Embedded metadata placement"):
// Go's garbage collector cannot safely scan pointer fields placed by
// unsafe.Pointer punning inside a raw byte buffer, so this module reserves
// the equivalent headroom in the layout without literally placing the
// struct's bytes inside the slab. The reserved space keeps capacity
// numbers, and therefore every spec.md §8 layout-determinism property,
// identical to a literal-embedding implementation.
const (
	slabInfoSize  = int(unsafe.Sizeof(SlabInfo{}))
	slabInfoAlign = 8
)

// SlabInfo is the per-slab bookkeeping record: free list of object slots,
// in-use count, intrusive list linkage, and a type-erased back reference to
// the owning Cache (spec data model §3).
type SlabInfo struct {
	base     uintptr // address of the slab's first byte
	owner    unsafe.Pointer
	capacity int
	inUse    int

	// freeList is a LIFO stack of free slot indices, seeded 0..capacity-1
	// on creation (spec rule 5: a fresh slab hands out slots in index
	// order). freeTop is the index of the next free slot to hand out, or
	// -1 when the slab is full.
	freeList []int32
	freeTop  int

	prev, next *SlabInfo
}

func newSlabInfo(owner unsafe.Pointer, base uintptr, capacity int) *SlabInfo {
	s := &SlabInfo{
		base:     base,
		owner:    owner,
		capacity: capacity,
		freeList: make([]int32, capacity),
		freeTop:  capacity - 1,
	}
	// Seeded so popSlot (which reads from the top of the stack) yields
	// slot 0 first, then 1, 2, ... (spec layout rule 5).
	for i := 0; i < capacity; i++ {
		s.freeList[i] = int32(capacity - 1 - i)
	}
	return s
}

// popSlot removes and returns a free slot index. Caller must ensure the
// slab is not already full.
func (s *SlabInfo) popSlot() int {
	idx := int(s.freeList[s.freeTop])
	s.freeTop--
	s.inUse++
	return idx
}

// pushSlot returns slot idx to the free list (LIFO: spec §5 ordering
// guarantee — slots are handed out in the reverse order they were freed).
func (s *SlabInfo) pushSlot(idx int) {
	s.freeTop++
	s.freeList[s.freeTop] = int32(idx)
	s.inUse--
}

func (s *SlabInfo) isFull() bool  { return s.inUse == s.capacity }
func (s *SlabInfo) isEmpty() bool { return s.inUse == 0 }

// slabList is an intrusive doubly-linked list of SlabInfo, identified only
// by its head pointer (spec §4.5). The cache, not the node, always knows
// which of the three lists a node belongs to when moving it.
type slabList struct {
	head *SlabInfo
	len  int
}

func (l *slabList) pushFront(s *SlabInfo) {
	s.prev = nil
	s.next = l.head
	if l.head != nil {
		l.head.prev = s
	}
	l.head = s
	l.len++
}

func (l *slabList) unlink(s *SlabInfo) {
	if s.prev != nil {
		s.prev.next = s.next
	} else {
		l.head = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	}
	s.prev = nil
	s.next = nil
	l.len--
}

func (l *slabList) empty() bool { return l.head == nil }
