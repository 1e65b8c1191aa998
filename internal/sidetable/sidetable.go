// Package sidetable implements the page address -> *slab.SlabInfo side map
// that backends use to serve resolution modes B and C (spec §4.4, §6).
// Grounded on memutils/metadata/tlsf.go's use of
// swiss.Map[BlockAllocationHandle, *tlsfBlock] for O(1) handle lookup; the
// spec requires this lookup be cheap because it sits on every hot-path
// Alloc/Free when the cache isn't in resolution mode A.
package sidetable

import (
	"github.com/dolthub/swiss"
	"github.com/kmalloc/slab"
)

// Table is a page address -> *slab.SlabInfo mapping with last-write-wins
// semantics (spec §5) and an idempotent delete.
type Table struct {
	m *swiss.Map[uintptr, *slab.SlabInfo]
}

// New returns an empty Table sized for sizeHint entries.
func New(sizeHint uint32) *Table {
	if sizeHint == 0 {
		sizeHint = 16
	}
	return &Table{m: swiss.NewMap[uintptr, *slab.SlabInfo](sizeHint)}
}

// Save records pageAddr -> info, overwriting any prior mapping.
func (t *Table) Save(pageAddr uintptr, info *slab.SlabInfo) {
	t.m.Put(pageAddr, info)
}

// Get returns the last mapping saved for pageAddr, or nil if none.
func (t *Table) Get(pageAddr uintptr) *slab.SlabInfo {
	info, ok := t.m.Get(pageAddr)
	if !ok {
		return nil
	}
	return info
}

// Delete removes the mapping for pageAddr. Absent keys are a no-op.
func (t *Table) Delete(pageAddr uintptr) {
	t.m.Delete(pageAddr)
}

// Len reports the number of saved page mappings, for tests and diagnostics.
func (t *Table) Len() int {
	return t.m.Count()
}
