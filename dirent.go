package blockfs

// A directory's block list is interpreted as pairs (name-block, child-index)
// occupying consecutive slots: pair k lives at Blocks[2k], Blocks[2k+1].
// A pair is free iff its name-block equals UnusedAddr. See spec.md §3/§4.6.

func numDirPairs(d *descriptor) int {
	return len(d.Blocks) / 2
}

func pairNameAddr(d *descriptor, pair int) uint16 {
	return d.Blocks[2*pair]
}

func pairChildIndex(d *descriptor, pair int) uint32 {
	return uint32(d.Blocks[2*pair+1])
}

func setPair(d *descriptor, pair int, nameAddr uint16, childIndex uint32) {
	d.Blocks[2*pair] = nameAddr
	d.Blocks[2*pair+1] = uint16(childIndex)
}

func clearPair(d *descriptor, pair int) {
	setPair(d, pair, UnusedAddr, uint32(UnusedAddr))
}

// readName loads the NUL-terminated name stored in data-area block addr.
func (img *Image) readName(addr uint16) (string, error) {
	raw, err := img.dev.ReadBlock(img.dataBlockOffset(addr))
	if err != nil {
		return "", err
	}
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i]), nil
		}
	}
	return string(raw), nil
}

// writeName writes name, truncated to the block size and NUL-padded, into
// data-area block addr.
func (img *Image) writeName(addr uint16, name string) error {
	buf := make([]byte, img.sb.blockSize)
	n := copy(buf, name)
	_ = n
	return img.dev.WriteBlock(img.dataBlockOffset(addr), buf)
}

// allocateNameBlock allocates a fresh data block and writes name into it,
// truncated to the block size per spec.md §3 ("names are truncated to B
// bytes"). It does not report the truncation itself; linkIntoDirectory
// returns the NameTooLong warning for names longer than B bytes.
func (img *Image) allocateNameBlock(name string) (uint16, error) {
	addr, err := img.allocateDataBlock()
	if err != nil {
		return 0, err
	}
	if err := img.writeName(addr, name); err != nil {
		return 0, err
	}
	return addr, nil
}

// findInDirectory scans dir's live pairs for one whose name matches
// component, comparing the stored NUL-terminated bytes exactly
// (case-sensitive), per spec.md §4.5.
func (img *Image) findInDirectory(dir *descriptor, component string) (childIndex uint32, found bool, err error) {
	for pair := 0; pair < numDirPairs(dir); pair++ {
		if pairNameAddr(dir, pair) == UnusedAddr {
			continue
		}
		name, err := img.readName(pairNameAddr(dir, pair))
		if err != nil {
			return 0, false, err
		}
		if name == component {
			return pairChildIndex(dir, pair), true, nil
		}
	}
	return 0, false, nil
}

// checkDirCapacity reports DirFull if dir already holds numDirPairs(dir)
// live pairs. Callers that mutate other state before inserting into a
// directory (spec.md §4.10: allocate everything before writing anything)
// call this first so a DirFull can never surface after a resource has
// already been acquired.
func (img *Image) checkDirCapacity(dir *descriptor) error {
	live := 0
	for pair := 0; pair < numDirPairs(dir); pair++ {
		if pairNameAddr(dir, pair) != UnusedAddr {
			live++
		}
	}
	if live >= numDirPairs(dir) {
		return DirFull
	}
	return nil
}

// linkIntoDirectory implements spec.md §4.6: add (name, childIndex) as a new
// entry of the directory at dirIndex. Capacity is F/2 live pairs, not F
// block slots — the source's off-by-factor-of-two bug (spec.md §9) is not
// reproduced here.
func (img *Image) linkIntoDirectory(dirIndex uint32, dir *descriptor, name string, childIndex uint32) error {
	if err := img.checkDirCapacity(dir); err != nil {
		return err
	}
	freePair := -1
	for pair := 0; pair < numDirPairs(dir); pair++ {
		if pairNameAddr(dir, pair) == UnusedAddr {
			freePair = pair
			break
		}
	}

	nameAddr, err := img.allocateNameBlock(name)
	if err != nil {
		return err
	}

	setPair(dir, freePair, nameAddr, childIndex)
	dir.Size++
	if err := img.writeDescriptor(dirIndex, dir); err != nil {
		return err
	}

	// The entry is already persisted at this point; NameTooLong is a
	// warning about the truncation that already happened, not a failure
	// of the insert itself (spec.md §7: "truncated, warning only").
	if uint(len(name)) > uint(img.sb.blockSize) {
		return NameTooLong.WithMessage(name)
	}
	return nil
}

// destroyDescriptor implements spec.md §4.7: free every live block address
// in the descriptor's list (data blocks for files/symlinks, name blocks for
// directories) and overwrite the record with an all-Empty one.
func (img *Image) destroyDescriptor(index uint32, d *descriptor) error {
	for i, addr := range d.Blocks {
		if addr == UnusedAddr {
			continue
		}
		// A directory's odd slots hold child indices, not block addresses.
		if d.Type == TypeDirectory && i%2 == 1 {
			continue
		}
		if err := img.freeDataBlock(addr); err != nil {
			return err
		}
	}
	return img.writeDescriptor(index, emptyDescriptor(img.sb.fanOut))
}
