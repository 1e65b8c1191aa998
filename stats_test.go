package slab_test

import (
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"

	"github.com/kmalloc/slab"
	"github.com/kmalloc/slab/memheap"
)

func TestStatistics(t *testing.T) {
	c, err := slab.New[obj64](slab.Config{
		SlabSize: 4096,
		PageSize: 4096,
		SizeType: slab.Small,
		Align:    8,
		Backend:  memheap.New(0),
	})
	require.NoError(t, err)

	for i := 0; i < c.Capacity()+1; i++ {
		_, err := c.Alloc()
		require.NoError(t, err)
	}

	st := c.Statistics()
	require.Equal(t, 2, st.SlabCount)
	require.Equal(t, 1, st.FullSlabCount)
	require.Equal(t, 1, st.PartialSlabCount)
	require.Equal(t, c.Capacity()+1, st.ObjectsInUse)
}

func TestWriteDetailedMap(t *testing.T) {
	c, err := slab.New[obj64](slab.Config{
		SlabSize: 4096,
		PageSize: 4096,
		SizeType: slab.Small,
		Align:    8,
		Backend:  memheap.New(0),
	})
	require.NoError(t, err)

	_, err = c.Alloc()
	require.NoError(t, err)

	w := jwriter.NewWriter()
	require.NoError(t, c.WriteDetailedMap(&w))
	out := w.Bytes()
	require.Contains(t, string(out), "SlabCount")
	require.Contains(t, string(out), "ObjectsInUse")
}
