package slab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeLayout_LargeCapacity(t *testing.T) {
	// spec §8 scenario 2: slab=8192, page=4096, object=2048, align=16.
	l, err := computeLayout(8192, 4096, 2048, 16, Large)
	require.NoError(t, err)
	require.Equal(t, 4, l.capacity)
	require.Equal(t, 0, l.firstSlotOffset)
	require.Equal(t, 2, l.pagesPerSlab)
	require.Equal(t, modeExternal, l.mode)
}

func TestComputeLayout_SmallSinglePage(t *testing.T) {
	// spec §8 scenario 1: slab=page=4096, object=64, align=8.
	l, err := computeLayout(4096, 4096, 64, 8, Small)
	require.NoError(t, err)
	require.GreaterOrEqual(t, l.capacity, 60)
	require.Equal(t, modeEmbedded, l.mode)
	require.Equal(t, 64, l.slotSize)
	require.Less(t, l.capacity*l.slotSize, 4096)
}

func TestComputeLayout_ZeroCapacity(t *testing.T) {
	// spec §8 scenario 3: no room left after reserving the embedded
	// SlabInfo when the object itself is page-sized.
	_, err := computeLayout(4096, 4096, 4096, 8, Small)
	require.ErrorIs(t, err, ErrZeroCapacity)
}

func TestComputeLayout_AlignmentStress(t *testing.T) {
	// spec §8 scenario 6: object=48, align=64.
	l, err := computeLayout(4096, 4096, 48, 64, Small)
	require.NoError(t, err)
	require.Equal(t, 64, l.slotSize)
	require.GreaterOrEqual(t, l.capacity, 1)
}

func TestComputeLayout_InvalidPageSize(t *testing.T) {
	_, err := computeLayout(4096, 4095, 64, 8, Small)
	require.ErrorIs(t, err, ErrInvalidPageSize)
}

func TestComputeLayout_InvalidSlabSize(t *testing.T) {
	_, err := computeLayout(4000, 4096, 64, 8, Small)
	require.ErrorIs(t, err, ErrInvalidSlabSize)

	_, err = computeLayout(2048, 4096, 64, 8, Small)
	require.ErrorIs(t, err, ErrInvalidSlabSize)
}

func TestComputeLayout_InvalidAlignment(t *testing.T) {
	_, err := computeLayout(4096, 4096, 64, 3, Small)
	require.ErrorIs(t, err, ErrInvalidAlignment)

	_, err = computeLayout(4096, 4096, 64, 8192, Small)
	require.ErrorIs(t, err, ErrInvalidAlignment)
}

func TestComputeLayout_Deterministic(t *testing.T) {
	l1, err := computeLayout(8192, 4096, 96, 16, Small)
	require.NoError(t, err)
	l2, err := computeLayout(8192, 4096, 96, 16, Small)
	require.NoError(t, err)
	require.Equal(t, l1, l2)
}

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, alignUp(0, 8))
	require.Equal(t, 8, alignUp(1, 8))
	require.Equal(t, 8, alignUp(8, 8))
	require.Equal(t, 16, alignUp(9, 8))
	require.Equal(t, 64, alignUp(48, 64))
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, v := range []int{1, 2, 4, 8, 4096} {
		require.True(t, isPowerOfTwo(v), "%d should be a power of two", v)
	}
	for _, v := range []int{0, 3, 5, 6, 4095} {
		require.False(t, isPowerOfTwo(v), "%d should not be a power of two", v)
	}
}
