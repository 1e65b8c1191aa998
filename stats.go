package slab

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Statistics is a coarse summary of a Cache's slab population, grounded on
// the aggregate counters memutils.Statistics carries in the teacher's
// allocator for a dedicated-allocation list.
type Statistics struct {
	SlabCount        int
	FreeSlabCount    int
	PartialSlabCount int
	FullSlabCount    int
	Capacity         int // objects per slab
	ObjectsInUse     int
}

// Statistics walks the three slab lists and aggregates their counts.
func (c *Cache[T]) Statistics() Statistics {
	st := Statistics{Capacity: c.layout.capacity}
	for _, entry := range []struct {
		list  *slabList
		count *int
	}{
		{&c.free, &st.FreeSlabCount},
		{&c.partial, &st.PartialSlabCount},
		{&c.full, &st.FullSlabCount},
	} {
		n := 0
		for s := entry.list.head; s != nil; s = s.next {
			n++
			st.ObjectsInUse += s.inUse
		}
		*entry.count = n
	}
	st.SlabCount = st.FreeSlabCount + st.PartialSlabCount + st.FullSlabCount
	return st
}

// DetailedStatistics additionally breaks down every individual slab's
// in-use count, for diagnostics that need per-slab granularity beyond the
// aggregate Statistics.
type DetailedStatistics struct {
	Statistics
	Slabs []SlabStatistics
}

// SlabStatistics describes one slab's occupancy.
type SlabStatistics struct {
	Base     uintptr
	InUse    int
	Capacity int
	State    string // "free", "partial" or "full"
}

// DetailedStatistics aggregates Statistics plus a per-slab breakdown.
func (c *Cache[T]) DetailedStatistics() DetailedStatistics {
	d := DetailedStatistics{Statistics: c.Statistics()}
	for _, e := range []struct {
		list  *slabList
		state string
	}{
		{&c.free, "free"},
		{&c.partial, "partial"},
		{&c.full, "full"},
	} {
		for s := e.list.head; s != nil; s = s.next {
			d.Slabs = append(d.Slabs, SlabStatistics{
				Base:     s.base,
				InUse:    s.inUse,
				Capacity: s.capacity,
				State:    e.state,
			})
		}
	}
	return d
}

// WriteDetailedMap renders DetailedStatistics as JSON, grounded on
// BlockMetadata.PrintDetailedMap in the teacher's memory/metadata package.
func (c *Cache[T]) WriteDetailedMap(w *jwriter.Writer) error {
	d := c.DetailedStatistics()

	obj := w.Object()
	obj.Name("SlabCount").Int(d.SlabCount)
	obj.Name("Capacity").Int(d.Capacity)
	obj.Name("ObjectsInUse").Int(d.ObjectsInUse)

	arr := obj.Name("Slabs").Array()
	for _, s := range d.Slabs {
		o := arr.Object()
		o.Name("Base").Int(int(s.Base))
		o.Name("InUse").Int(s.InUse)
		o.Name("Capacity").Int(s.Capacity)
		o.Name("State").String(s.State)
		o.End()
	}
	arr.End()
	obj.End()

	return w.Error()
}

// Validate walks every linked SlabInfo and checks the universal invariants
// from spec §8 #1-#2: each slab's in-use count is in range and consistent
// with the list it is linked into, and lives in exactly one list.
func (c *Cache[T]) Validate() error {
	seen := make(map[*SlabInfo]string)

	check := func(list *slabList, name string, pred func(*SlabInfo) bool) error {
		for s := list.head; s != nil; s = s.next {
			if prior, ok := seen[s]; ok {
				return errors.Newf("slab: SlabInfo at base %#x is linked into both %s and %s", s.base, prior, name)
			}
			seen[s] = name
			if s.owner != nil && s.owner != unsafe.Pointer(c) {
				return errors.Newf("slab: SlabInfo at base %#x has a foreign owner", s.base)
			}
			if s.inUse < 0 || s.inUse > s.capacity {
				return errors.Newf("slab: SlabInfo at base %#x has in-use %d outside [0, %d]", s.base, s.inUse, s.capacity)
			}
			if !pred(s) {
				return errors.Newf("slab: SlabInfo at base %#x (in-use %d, capacity %d) is misfiled in %s", s.base, s.inUse, s.capacity, name)
			}
		}
		return nil
	}

	if err := check(&c.free, "free", func(s *SlabInfo) bool { return s.inUse == 0 }); err != nil {
		return err
	}
	if err := check(&c.partial, "partial", func(s *SlabInfo) bool { return s.inUse > 0 && s.inUse < s.capacity }); err != nil {
		return err
	}
	if err := check(&c.full, "full", func(s *SlabInfo) bool { return s.inUse == s.capacity }); err != nil {
		return err
	}
	return nil
}
