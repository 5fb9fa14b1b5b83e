package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScratch(t *testing.T) (*ScratchBuffer, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice(2)
	s, err := NewScratchBuffer(dev, 256, 2048, 64)
	require.NoError(t, err)
	return s, dev
}

func TestScratchAdvancesByBlockSize(t *testing.T) {
	s, _ := newTestScratch(t)

	// 32 bytes falls in the first size class, whose block size is 256.
	a := s.AllocateConstantRegion(32)
	b := s.AllocateConstantRegion(32)
	assert.Equal(t, uint32(0), a.Offset)
	assert.Equal(t, uint32(256), b.Offset)
	assert.Len(t, a.Memory, 32)
	assert.Same(t, a.Pool, b.Pool)
}

func TestScratchSelectsSizeClass(t *testing.T) {
	s, _ := newTestScratch(t)

	small := s.AllocateConstantRegion(100)
	big := s.AllocateConstantRegion(600)

	// Different size classes bump independent cursors, both start at zero.
	assert.Equal(t, uint32(0), small.Offset)
	assert.Equal(t, uint32(0), big.Offset)
	assert.NotSame(t, small.Pool, big.Pool)

	// 600 bytes lands in pool 600/256 = 2 with block size 768.
	next := s.AllocateConstantRegion(600)
	assert.Equal(t, uint32(768), next.Offset)
}

func TestScratchResetRewindsAllCursors(t *testing.T) {
	s, _ := newTestScratch(t)

	s.AllocateConstantRegion(32)
	s.AllocateConstantRegion(600)
	_, _, cursor, err := s.AllocateDescriptors(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), cursor)

	s.Reset()

	a := s.AllocateConstantRegion(32)
	b := s.AllocateConstantRegion(600)
	assert.Equal(t, uint32(0), a.Offset)
	assert.Equal(t, uint32(0), b.Offset)
	_, _, cursor, err = s.AllocateDescriptors(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), cursor)
}

func TestScratchMaxBlockSizeIsExclusive(t *testing.T) {
	s, _ := newTestScratch(t)

	// One byte under the ceiling lands in the last pool.
	region := s.AllocateConstantRegion(2047)
	assert.Equal(t, uint32(0), region.Offset)
	assert.Len(t, region.Memory, 2047)

	assert.Panics(t, func() { s.AllocateConstantRegion(2048) })
	assert.Panics(t, func() { s.AllocateConstantRegion(4096) })
}

func TestScratchDescriptorsComeFromPoolZero(t *testing.T) {
	s, _ := newTestScratch(t)

	// Exhausting a large size class must not move the descriptor cursor.
	s.AllocateConstantRegion(1500)
	s.AllocateConstantRegion(1500)

	texA, smpA, cursorA, err := s.AllocateDescriptors(2)
	require.NoError(t, err)
	texB, smpB, cursorB, err := s.AllocateDescriptors(2)
	require.NoError(t, err)

	assert.Equal(t, uint32(0), cursorA)
	assert.Equal(t, uint32(2), cursorB)
	assert.Same(t, texA, texB)
	assert.Same(t, smpA, smpB)

	heapTex, heapSmp := s.DescriptorHeaps()
	assert.Same(t, texA, heapTex)
	assert.Same(t, smpA, heapSmp)
}

func TestScratchDescriptorExhaustion(t *testing.T) {
	s, _ := newTestScratch(t)

	_, _, _, err := s.AllocateDescriptors(64)
	require.NoError(t, err)
	_, _, _, err = s.AllocateDescriptors(1)
	assert.Error(t, err)

	s.Reset()
	_, _, _, err = s.AllocateDescriptors(1)
	assert.NoError(t, err)
}
