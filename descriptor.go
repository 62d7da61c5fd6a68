package blockfs

import (
	"github.com/noxer/bytewriter"
)

// descriptor is the in-memory form of one file-descriptor-table record.
// Blocks is always len == fanOut; unused slots hold UnusedAddr. For a
// directory, Blocks is interpreted as consecutive (name-block, child-index)
// pairs, per spec.md §3.
type descriptor struct {
	Type     FileType
	Size     uint16
	NumLinks uint8
	Blocks   []uint16
}

func emptyDescriptor(fanOut uint16) *descriptor {
	blocks := make([]uint16, fanOut)
	for i := range blocks {
		blocks[i] = UnusedAddr
	}
	return &descriptor{Type: TypeEmpty, Blocks: blocks}
}

// encode serializes the record into exactly descriptorSpan(B,F)*B bytes,
// type(1) size-lo(1) size-hi(1) links(1) then F*(addr-lo,addr-hi).
func (d *descriptor) encode(blockSize, fanOut uint16) []byte {
	buf := make([]byte, int(descriptorSpan(blockSize, fanOut))*int(blockSize))
	w := bytewriter.New(buf)
	w.Write([]byte{
		byte(d.Type),
		byte(d.Size),
		byte(d.Size >> 8),
		byte(d.NumLinks),
	})
	for i := 0; i < int(fanOut); i++ {
		var addr uint16 = UnusedAddr
		if i < len(d.Blocks) {
			addr = d.Blocks[i]
		}
		w.Write([]byte{byte(addr), byte(addr >> 8)})
	}
	return buf
}

// decodeDescriptor reads a single record out of raw bytes (as returned by
// reading descriptorSpan(B,F) blocks).
func decodeDescriptor(raw []byte, fanOut uint16) *descriptor {
	d := &descriptor{
		Type:     FileType(raw[0]),
		Size:     uint16(raw[1]) | uint16(raw[2])<<8,
		NumLinks: raw[3],
		Blocks:   make([]uint16, fanOut),
	}
	pos := 4
	for i := 0; i < int(fanOut); i++ {
		d.Blocks[i] = uint16(raw[pos]) | uint16(raw[pos+1])<<8
		pos += 2
	}
	return d
}

// liveBlockCount returns the number of slots in the block list that aren't
// UnusedAddr.
func (d *descriptor) liveBlockCount() int {
	n := 0
	for _, addr := range d.Blocks {
		if addr != UnusedAddr {
			n++
		}
	}
	return n
}

// readDescriptor loads descriptor index i from the descriptor table region.
func (img *Image) readDescriptor(index uint32) (*descriptor, error) {
	if uint(index) >= uint(img.sb.maxDescriptors) {
		return nil, RangeError.WithMessage("descriptor index out of range")
	}
	span := descriptorSpan(img.sb.blockSize, img.sb.fanOut)
	start := img.sb.fdsStart() + uint(index)*span
	raw, err := img.dev.ReadBlocks(start, span)
	if err != nil {
		return nil, err
	}
	return decodeDescriptor(raw, img.sb.fanOut), nil
}

// writeDescriptor serializes and flushes descriptor index i back to the
// descriptor table region.
func (img *Image) writeDescriptor(index uint32, d *descriptor) error {
	if uint(index) >= uint(img.sb.maxDescriptors) {
		return RangeError.WithMessage("descriptor index out of range")
	}
	span := descriptorSpan(img.sb.blockSize, img.sb.fanOut)
	start := img.sb.fdsStart() + uint(index)*span
	return img.dev.WriteBlocks(start, d.encode(img.sb.blockSize, img.sb.fanOut))
}

// findFreeDescriptor linearly scans indices 0..M-1 for the first Empty slot.
func (img *Image) findFreeDescriptor() (uint32, error) {
	for i := uint32(0); uint(i) < uint(img.sb.maxDescriptors); i++ {
		d, err := img.readDescriptor(i)
		if err != nil {
			return 0, err
		}
		if d.Type == TypeEmpty {
			return i, nil
		}
	}
	return 0, NoFreeDescriptor
}
