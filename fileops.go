package blockfs

// Create implements spec.md §4.8 "create": allocate a free descriptor
// index, insert it into the resolved parent directory under the resolved
// leaf name, and only then write a Regular descriptor with size 0 and link
// count 1. The insert happens first (spec.md §4.10: acquire everything
// before mutating on-disk records) so a DirFull from the directory being
// full never leaves a live, unreferenced descriptor behind. Creating over
// an existing name is allowed (see spec.md §7, AlreadyExists applies to
// mkdir only).
func (e *Engine) Create(path string) error {
	img, err := e.requireMounted()
	if err != nil {
		return err
	}

	parentIndex, name, err := img.resolvePath(path)
	if err != nil {
		return err
	}
	parent, err := img.readDescriptor(parentIndex)
	if err != nil {
		return err
	}
	if parent.Type != TypeDirectory {
		return NotADirectory
	}
	if err := img.checkDirCapacity(parent); err != nil {
		return err
	}

	newIndex, err := img.findFreeDescriptor()
	if err != nil {
		return err
	}

	linkErr := img.linkIntoDirectory(parentIndex, parent, name, newIndex)
	if linkErr != nil && !isNameTooLong(linkErr) {
		return linkErr
	}

	fresh := emptyDescriptor(img.sb.fanOut)
	fresh.Type = TypeRegular
	fresh.NumLinks = 1
	if err := img.writeDescriptor(newIndex, fresh); err != nil {
		return err
	}
	return linkErr
}

// Open implements spec.md §4.8 "open": resolve path to an existing
// descriptor and bind it to the lowest-index empty open-file slot.
func (e *Engine) Open(path string) (int, error) {
	img, err := e.requireMounted()
	if err != nil {
		return 0, err
	}

	index, err := img.resolveToIndex(path)
	if err != nil {
		return 0, err
	}
	return img.allocOpenSlot(index)
}

// Close releases an open-file handle.
func (e *Engine) Close(handle int) error {
	img, err := e.requireMounted()
	if err != nil {
		return err
	}
	return img.releaseHandle(handle)
}

// Read implements spec.md §4.8 "read": copy exactly size bytes starting at
// offset out of the file's live data blocks. It is an error to read past
// the current size.
func (e *Engine) Read(handle int, offset, size uint) ([]byte, error) {
	img, err := e.requireMounted()
	if err != nil {
		return nil, err
	}

	index, err := img.handleDescriptor(handle)
	if err != nil {
		return nil, err
	}
	d, err := img.readDescriptor(index)
	if err != nil {
		return nil, err
	}
	if d.Type != TypeRegular {
		return nil, TypeMismatch
	}
	if offset+size > uint(d.Size) {
		return nil, RangeError
	}

	out := make([]byte, 0, size)
	blockSize := uint(img.sb.blockSize)
	pos := offset
	for pos < offset+size {
		blockIdx := pos / blockSize
		withinBlock := pos % blockSize
		raw, err := img.dev.ReadBlock(img.dataBlockOffset(d.Blocks[blockIdx]))
		if err != nil {
			return nil, err
		}
		n := blockSize - withinBlock
		if remaining := offset + size - pos; n > remaining {
			n = remaining
		}
		out = append(out, raw[withinBlock:withinBlock+n]...)
		pos += n
	}
	return out, nil
}

// Write implements spec.md §4.8 "write": overwrite or extend the file
// starting at offset, allocating new data blocks as needed, then update
// size to max(size, offset+len(data)). It is an error to start writing
// past the current size (a write may extend the file, but not leave a
// hole).
func (e *Engine) Write(handle int, offset uint, data []byte) error {
	img, err := e.requireMounted()
	if err != nil {
		return err
	}

	index, err := img.handleDescriptor(handle)
	if err != nil {
		return err
	}
	d, err := img.readDescriptor(index)
	if err != nil {
		return err
	}
	if d.Type != TypeRegular {
		return TypeMismatch
	}
	if offset > uint(d.Size) {
		return RangeError
	}
	if offset+uint(len(data)) > uint(len(d.Blocks))*uint(img.sb.blockSize) {
		return RangeError.WithMessage("write would exceed the maximum file size F*B")
	}

	blockSize := uint(img.sb.blockSize)
	pos := offset
	var allocated []uint16
	for pos < offset+uint(len(data)) {
		blockIdx := pos / blockSize
		withinBlock := pos % blockSize

		if d.Blocks[blockIdx] == UnusedAddr {
			addr, err := img.allocateDataBlock()
			if err != nil {
				img.releaseAll(allocated...)
				return err
			}
			d.Blocks[blockIdx] = addr
			allocated = append(allocated, addr)
		}

		raw, err := img.dev.ReadBlock(img.dataBlockOffset(d.Blocks[blockIdx]))
		if err != nil {
			img.releaseAll(allocated...)
			return err
		}

		n := blockSize - withinBlock
		if remaining := offset + uint(len(data)) - pos; n > remaining {
			n = remaining
		}
		copy(raw[withinBlock:withinBlock+n], data[pos-offset:pos-offset+n])
		if err := img.dev.WriteBlock(img.dataBlockOffset(d.Blocks[blockIdx]), raw); err != nil {
			img.releaseAll(allocated...)
			return err
		}
		pos += n
	}

	newSize := offset + uint(len(data))
	if newSize > uint(d.Size) {
		d.Size = uint16(newSize)
	}
	return img.writeDescriptor(index, d)
}

// Truncate implements spec.md §4.8 "truncate": grow or shrink a regular
// file's size, freeing released blocks on shrink and NUL-initializing new
// ones on grow.
func (e *Engine) Truncate(path string, newSize uint) error {
	img, err := e.requireMounted()
	if err != nil {
		return err
	}

	index, err := img.resolveToIndex(path)
	if err != nil {
		return err
	}
	d, err := img.readDescriptor(index)
	if err != nil {
		return err
	}
	if d.Type != TypeRegular {
		return TypeMismatch
	}
	maxSize := uint(len(d.Blocks)) * uint(img.sb.blockSize)
	if newSize > maxSize {
		return RangeError
	}

	oldBlocks := ceilDiv(uint(d.Size), uint(img.sb.blockSize))
	newBlocks := ceilDiv(newSize, uint(img.sb.blockSize))

	if newBlocks < oldBlocks {
		for i := newBlocks; i < oldBlocks; i++ {
			if err := img.freeDataBlock(d.Blocks[i]); err != nil {
				return err
			}
			d.Blocks[i] = UnusedAddr
		}
	} else if newBlocks > oldBlocks {
		zero := make([]byte, img.sb.blockSize)
		for i := oldBlocks; i < newBlocks; i++ {
			addr, err := img.allocateDataBlock()
			if err != nil {
				return err
			}
			if err := img.dev.WriteBlock(img.dataBlockOffset(addr), zero); err != nil {
				return err
			}
			d.Blocks[i] = addr
		}
	}

	d.Size = uint16(newSize)
	return img.writeDescriptor(index, d)
}

// Filestat reports the type, size and link count of a descriptor by index.
func (e *Engine) Filestat(index uint32) (Stat, error) {
	img, err := e.requireMounted()
	if err != nil {
		return Stat{}, err
	}
	d, err := img.readDescriptor(index)
	if err != nil {
		return Stat{}, err
	}
	return Stat{
		Index:     index,
		Type:      d.Type,
		Size:      d.Size,
		NumLinks:  d.NumLinks,
		NumBlocks: d.liveBlockCount(),
	}, nil
}
