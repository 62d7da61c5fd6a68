package blockfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuperblockRoundTrip(t *testing.T) {
	sb := &superblock{blockSize: 8, maxDescriptors: 12, fanOut: 10, dataAreaStart: 37}

	raw := sb.encode()
	require.Len(t, raw, int(headerBlocks(8))*8)

	decoded, err := decodeSuperblock(raw)
	require.NoError(t, err)
	assert.Equal(t, sb, decoded)
}

func TestDecodeSuperblockTooShort(t *testing.T) {
	_, err := decodeSuperblock([]byte{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, BadImage)
}

func TestDeriveDataAreaStartDefaultGeometry(t *testing.T) {
	start := deriveDataAreaStart(DefaultTotalBlocks, DefaultBlockSize, DefaultMaxDescriptors, DefaultFanOut)
	assert.Equal(t, uint16(38), start)

	sb := &superblock{
		blockSize:      DefaultBlockSize,
		maxDescriptors: DefaultMaxDescriptors,
		fanOut:         DefaultFanOut,
		dataAreaStart:  start,
	}
	assert.Equal(t, uint(1), sb.mapStart())
	assert.Equal(t, uint(1), sb.mapBlocks())
	assert.Equal(t, uint(1), sb.fdsStart()-sb.mapStart())
	assert.Equal(t, uint(36), sb.fdBlocks())
}

func TestDescriptorSpan(t *testing.T) {
	assert.Equal(t, uint(3), descriptorSpan(8, 10))
	assert.Equal(t, uint(1), headerBlocks(8))
}
