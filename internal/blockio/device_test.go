package blockio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func newTestDevice(t *testing.T, blocks uint, blockSize uint) *Device {
	buf := make([]byte, blocks*blockSize)
	stream := bytesextra.NewReadWriteSeeker(buf)
	return New(stream, blockSize, blocks)
}

func TestWriteThenReadBlock(t *testing.T) {
	dev := newTestDevice(t, 4, 8)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, dev.WriteBlock(1, data))

	got, err := dev.ReadBlock(1)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadBlocksContiguous(t *testing.T) {
	dev := newTestDevice(t, 4, 8)

	require.NoError(t, dev.WriteBlock(0, make([]byte, 8)))
	one := make([]byte, 8)
	for i := range one {
		one[i] = 0xAA
	}
	require.NoError(t, dev.WriteBlock(1, one))

	got, err := dev.ReadBlocks(0, 2)
	require.NoError(t, err)
	assert.Equal(t, append(make([]byte, 8), one...), got)
}

func TestOutOfRangeReadFails(t *testing.T) {
	dev := newTestDevice(t, 2, 8)
	_, err := dev.ReadBlocks(1, 2)
	assert.Error(t, err)
}

func TestWriteBlocksRequiresBlockAlignedData(t *testing.T) {
	dev := newTestDevice(t, 2, 8)
	err := dev.WriteBlocks(0, make([]byte, 3))
	assert.Error(t, err)
}
