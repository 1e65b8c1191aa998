package slab

import (
	"math/bits"

	"github.com/cockroachdb/errors"
)

// SizeType selects how a slab's SlabInfo metadata is provided: with room
// reserved for it inside the slab itself (Small) or allocated separately
// through the backend (Large). The choice is fixed for the lifetime of a
// Cache and determines which of the three object->SlabInfo resolution
// modes (A, B, C) applies.
type SizeType uint8

const (
	// Small reserves room for the SlabInfo at the end of the slab region;
	// the SlabInfo record itself is an ordinary Go-heap value created by
	// the cache (see slabinfo.go). Cheapest at one page per slab (mode A:
	// no backend lookup on free); still usable for multi-page slabs, but
	// then pays a side-table lookup (mode B).
	Small SizeType = iota
	// Large allocates SlabInfo separately through the backend and always
	// resolves objects to their SlabInfo via the backend's side table
	// (mode C).
	Large
)

func (t SizeType) String() string {
	switch t {
	case Small:
		return "Small"
	case Large:
		return "Large"
	default:
		return "SizeType(?)"
	}
}

// resolutionMode identifies how Cache.resolve locates a SlabInfo from an
// object pointer. Fixed once at construction (spec mode A/B/C).
type resolutionMode uint8

const (
	modeEmbedded   resolutionMode = iota // A: Small, slabSize == pageSize
	modeSideTable                        // B: Small, slabSize > pageSize
	modeExternal                         // C: Large
)

// layout is the pure, once-computed result of laying fixed-size slots (and,
// for Small, an embedded SlabInfo) out across a slab.
type layout struct {
	slotSize        int
	capacity        int
	firstSlotOffset int
	slabInfoOffset  int // only meaningful for Small
	pagesPerSlab    int
	mode            resolutionMode
}

// slabInfoFootprint is the size and alignment of the SlabInfo bookkeeping
// structure, used when reserving space for it inside a Small slab. It
// returns slabInfoSize and slabInfoAlign from slabinfo.go, so the reserved
// size is that of the real SlabInfo struct.
func slabInfoFootprint() (size, align int) {
	return slabInfoSize, slabInfoAlign
}

// computeLayout implements the slab layout calculator (spec §4.1): a pure
// function of slab size, page size, object size/alignment and size-type
// that yields how many object slots fit in a slab and where they start.
func computeLayout(slabSize, pageSize, objectSize, objectAlign int, sizeType SizeType) (layout, error) {
	if pageSize <= 0 || !isPowerOfTwo(pageSize) {
		return layout{}, errors.Wrapf(ErrInvalidPageSize, "page size %d", pageSize)
	}
	if slabSize <= 0 || slabSize%pageSize != 0 || !isPowerOfTwo(slabSize/pageSize) {
		return layout{}, errors.Wrapf(ErrInvalidSlabSize, "slab size %d, page size %d", slabSize, pageSize)
	}
	if objectAlign <= 0 || !isPowerOfTwo(objectAlign) || objectAlign > pageSize {
		return layout{}, errors.Wrapf(ErrInvalidAlignment, "object align %d, page size %d", objectAlign, pageSize)
	}
	if objectSize < 1 {
		return layout{}, errors.Wrapf(ErrInvalidAlignment, "object size %d", objectSize)
	}

	slotSize := alignUp(objectSize, objectAlign)

	var l layout
	l.slotSize = slotSize
	l.pagesPerSlab = slabSize / pageSize

	switch sizeType {
	case Large:
		l.capacity = slabSize / slotSize
		l.firstSlotOffset = 0
		l.mode = modeExternal

	case Small:
		infoSize, infoAlign := slabInfoFootprint()
		// Slots start at offset 0; capacity is the largest count that still
		// leaves room, after alignment padding, for the embedded SlabInfo
		// at the end of the slab.
		capacity := slabSize / slotSize
		for capacity > 0 {
			slotsEnd := capacity * slotSize
			infoStart := alignUp(slotsEnd, infoAlign)
			if infoStart+infoSize <= slabSize {
				l.slabInfoOffset = infoStart
				break
			}
			capacity--
		}
		l.capacity = capacity
		l.firstSlotOffset = 0
		if slabSize == pageSize {
			l.mode = modeEmbedded
		} else {
			l.mode = modeSideTable
		}

	default:
		return layout{}, errors.Newf("slab: unknown size type %d", sizeType)
	}

	if l.capacity < 1 {
		return layout{}, ErrZeroCapacity
	}
	return l, nil
}

func isPowerOfTwo(v int) bool {
	return v > 0 && bits.OnesCount(uint(v)) == 1
}

// alignUp rounds v up to the next multiple of align. align must be a power
// of two.
func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}
