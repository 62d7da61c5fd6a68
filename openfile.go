package blockfs

// isOpen reports whether descriptor index is already held by some slot.
func (img *Image) isOpen(index uint32) bool {
	for _, slot := range img.openFiles {
		if slot.used && slot.descriptor == index {
			return true
		}
	}
	return false
}

// allocOpenSlot picks the lowest-index empty slot and binds it to index,
// per spec.md §4.8 ("open"): a descriptor may be open in at most one slot,
// and the table has a fixed capacity K (OpenFileTableSize).
func (img *Image) allocOpenSlot(index uint32) (int, error) {
	if img.isOpen(index) {
		return 0, AlreadyOpen
	}
	for h := range img.openFiles {
		if !img.openFiles[h].used {
			img.openFiles[h] = openSlot{used: true, descriptor: index}
			return h, nil
		}
	}
	return 0, TooManyOpen
}

// releaseHandle clears a slot, returning it to Empty.
func (img *Image) releaseHandle(handle int) error {
	if handle < 0 || handle >= OpenFileTableSize || !img.openFiles[handle].used {
		return BadHandle
	}
	img.openFiles[handle] = openSlot{}
	return nil
}

// handleDescriptor returns the descriptor index a handle currently refers
// to, failing with BadHandle for an empty slot (spec.md §4.9: "Any handle
// dereferenced in state Empty fails.").
func (img *Image) handleDescriptor(handle int) (uint32, error) {
	if handle < 0 || handle >= OpenFileTableSize || !img.openFiles[handle].used {
		return 0, BadHandle
	}
	return img.openFiles[handle].descriptor, nil
}
