package blockfs

// detachEntry removes the (name, childIndex) pair named name from dir,
// freeing its name block and decrementing dir's live entry count. It does
// not persist dir or touch the child descriptor's link count — callers
// (unlink, rmdir) finish the bookkeeping and write dir back themselves.
func (img *Image) detachEntry(dir *descriptor, name string) (childIndex uint32, err error) {
	for pair := 0; pair < numDirPairs(dir); pair++ {
		if pairNameAddr(dir, pair) == UnusedAddr {
			continue
		}
		entryName, err := img.readName(pairNameAddr(dir, pair))
		if err != nil {
			return 0, err
		}
		if entryName != name {
			continue
		}

		childIndex = pairChildIndex(dir, pair)
		if err := img.freeDataBlock(pairNameAddr(dir, pair)); err != nil {
			return 0, err
		}
		clearPair(dir, pair)
		dir.Size--
		return childIndex, nil
	}
	return 0, PathNotFound
}

// Link implements spec.md §4.8 "link": add a hard link to an existing
// regular file. The directory entry is inserted before src's link count is
// bumped (spec.md §4.10), so a DirFull from dstParent being full never
// leaves src's link count permanently inflated with no matching entry.
// Directories cannot be hard-linked (TypeMismatch).
func (e *Engine) Link(existingPath, newPath string) error {
	img, err := e.requireMounted()
	if err != nil {
		return err
	}

	srcIndex, err := img.resolveToIndex(existingPath)
	if err != nil {
		return err
	}
	src, err := img.readDescriptor(srcIndex)
	if err != nil {
		return err
	}
	if src.Type == TypeDirectory {
		return TypeMismatch
	}

	dstParentIndex, dstName, err := img.resolvePath(newPath)
	if err != nil {
		return err
	}
	dstParent, err := img.readDescriptor(dstParentIndex)
	if err != nil {
		return err
	}
	if dstParent.Type != TypeDirectory {
		return NotADirectory
	}

	linkErr := img.linkIntoDirectory(dstParentIndex, dstParent, dstName, srcIndex)
	if linkErr != nil && !isNameTooLong(linkErr) {
		return linkErr
	}

	src.NumLinks++
	if err := img.writeDescriptor(srcIndex, src); err != nil {
		return err
	}
	return linkErr
}

// Unlink implements spec.md §4.8 "unlink": remove one directory entry and,
// if its link count reaches zero, release the underlying descriptor and
// its data blocks. Directories must go through Rmdir instead.
func (e *Engine) Unlink(path string) error {
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

	childIndex, found, err := img.findInDirectory(parent, name)
	if err != nil {
		return err
	}
	if !found {
		return PathNotFound
	}
	child, err := img.readDescriptor(childIndex)
	if err != nil {
		return err
	}
	if child.Type == TypeDirectory {
		return TypeMismatch
	}

	if _, err := img.detachEntry(parent, name); err != nil {
		return err
	}
	if err := img.writeDescriptor(parentIndex, parent); err != nil {
		return err
	}

	// spec.md §9: destroy only once the post-decrement count reaches zero,
	// and skip the redundant write-back destroyDescriptor already does.
	child.NumLinks--
	if child.NumLinks == 0 {
		return img.destroyDescriptor(childIndex, child)
	}
	return img.writeDescriptor(childIndex, child)
}

// Mkdir implements spec.md §4.8 "mkdir": create a directory pre-populated
// with "." and ".." entries and insert it into the resolved parent.
// Creating over an existing name fails with AlreadyExists — unlike create
// and link, mkdir does not allow shadowing. Per spec.md §4.10 the parent
// entry is linked before the child descriptor is finalized, and any name
// block already taken is released if a later step fails, so a DirFull or
// NoFreeBlock midway through never leaks a name block or an inflated
// parent link count.
func (e *Engine) Mkdir(path string) error {
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
	if _, found, err := img.findInDirectory(parent, name); err != nil {
		return err
	} else if found {
		return AlreadyExists
	}
	if err := img.checkDirCapacity(parent); err != nil {
		return err
	}

	newIndex, err := img.findFreeDescriptor()
	if err != nil {
		return err
	}

	parentAddr, err := img.allocateNameBlock("..")
	if err != nil {
		return err
	}
	selfAddr, err := img.allocateNameBlock(".")
	if err != nil {
		img.releaseAll(parentAddr)
		return err
	}

	// The new directory's ".." entry is one more live pair pointing at
	// parentIndex, so parent's own link count goes up by one — but only
	// once the entry below actually exists.
	parent.NumLinks++
	linkErr := img.linkIntoDirectory(parentIndex, parent, name, newIndex)
	if linkErr != nil && !isNameTooLong(linkErr) {
		parent.NumLinks--
		img.releaseAll(parentAddr, selfAddr)
		return linkErr
	}

	child := emptyDescriptor(img.sb.fanOut)
	child.Type = TypeDirectory
	child.Size = 2
	child.NumLinks = 2
	setPair(child, 0, parentAddr, parentIndex)
	setPair(child, 1, selfAddr, newIndex)
	if err := img.writeDescriptor(newIndex, child); err != nil {
		return err
	}
	return linkErr
}

// Rmdir implements spec.md §4.8 "rmdir": remove an empty directory (size
// may only count "." and ".."). Refuses non-empty directories.
func (e *Engine) Rmdir(path string) error {
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

	childIndex, found, err := img.findInDirectory(parent, name)
	if err != nil {
		return err
	}
	if !found {
		return PathNotFound
	}
	child, err := img.readDescriptor(childIndex)
	if err != nil {
		return err
	}
	if child.Type != TypeDirectory {
		return NotADirectory
	}
	if child.Size > 2 {
		return NotEmpty
	}

	if _, err := img.detachEntry(parent, name); err != nil {
		return err
	}
	// Removing the child's ".." pair undoes the link-count bump Mkdir gave
	// the parent.
	parent.NumLinks--
	if err := img.writeDescriptor(parentIndex, parent); err != nil {
		return err
	}

	return img.destroyDescriptor(childIndex, child)
}

// Symlink implements spec.md §4.8 "symlink": create a symlink in the
// current working directory whose content is targetText. The directory
// entry is linked before the descriptor is finalized, and any target
// blocks already allocated are released if linking fails (spec.md §4.10),
// so a DirFull never leaks the target's data blocks.
func (e *Engine) Symlink(targetText, linkName string) error {
	img, err := e.requireMounted()
	if err != nil {
		return err
	}

	cwd, err := img.readDescriptor(img.cwd)
	if err != nil {
		return err
	}
	if cwd.Type != TypeDirectory {
		return NotADirectory
	}

	if uint(len(targetText)) > uint(img.sb.fanOut)*uint(img.sb.blockSize) {
		return RangeError
	}
	if err := img.checkDirCapacity(cwd); err != nil {
		return err
	}

	newIndex, err := img.findFreeDescriptor()
	if err != nil {
		return err
	}

	child := emptyDescriptor(img.sb.fanOut)
	child.Type = TypeSymlink
	child.Size = uint16(len(targetText))
	child.NumLinks = 1

	numBlocks := ceilDiv(uint(len(targetText)), uint(img.sb.blockSize))
	allocated := make([]uint16, 0, numBlocks)
	for i := uint(0); i < numBlocks; i++ {
		start := i * uint(img.sb.blockSize)
		end := start + uint(img.sb.blockSize)
		if end > uint(len(targetText)) {
			end = uint(len(targetText))
		}
		chunk := make([]byte, img.sb.blockSize)
		copy(chunk, targetText[start:end])

		addr, err := img.allocateDataBlock()
		if err != nil {
			img.releaseAll(allocated...)
			return err
		}
		allocated = append(allocated, addr)
		if err := img.dev.WriteBlock(img.dataBlockOffset(addr), chunk); err != nil {
			img.releaseAll(allocated...)
			return err
		}
		child.Blocks[i] = addr
	}

	linkErr := img.linkIntoDirectory(img.cwd, cwd, linkName, newIndex)
	if linkErr != nil && !isNameTooLong(linkErr) {
		img.releaseAll(allocated...)
		return linkErr
	}

	if err := img.writeDescriptor(newIndex, child); err != nil {
		return err
	}
	return linkErr
}
