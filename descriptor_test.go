package blockfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorEncodeDecodeRoundTrip(t *testing.T) {
	d := emptyDescriptor(10)
	d.Type = TypeRegular
	d.Size = 15
	d.NumLinks = 2
	d.Blocks[0] = 4
	d.Blocks[1] = 5

	raw := d.encode(8, 10)
	require.Len(t, raw, int(descriptorSpan(8, 10))*8)

	decoded := decodeDescriptor(raw, 10)
	assert.Equal(t, d, decoded)
}

func TestEmptyDescriptorHasNoLiveBlocks(t *testing.T) {
	d := emptyDescriptor(10)
	assert.Equal(t, TypeEmpty, d.Type)
	assert.Equal(t, 0, d.liveBlockCount())
	for _, addr := range d.Blocks {
		assert.Equal(t, UnusedAddr, addr)
	}
}

func TestLiveBlockCount(t *testing.T) {
	d := emptyDescriptor(4)
	d.Blocks[0] = 1
	d.Blocks[2] = 2
	assert.Equal(t, 2, d.liveBlockCount())
}
