package blockfs

import "strings"

// splitComponents splits a path on '/', discarding empty components so that
// a leading slash, trailing slash, or run of slashes (which can appear
// after splicing a symlink target into the remaining path) doesn't produce
// spurious empty path elements.
func splitComponents(path string) []string {
	raw := strings.Split(path, "/")
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// readSymlinkTarget reconstructs the target text of a symlink descriptor:
// its Size is the text length in bytes, laid out contiguously across
// blocks 0..⌈size/B⌉-1.
func (img *Image) readSymlinkTarget(d *descriptor) (string, error) {
	numBlocks := ceilDiv(uint(d.Size), uint(img.sb.blockSize))
	buf := make([]byte, 0, numBlocks*uint(img.sb.blockSize))
	for i := uint(0); i < numBlocks; i++ {
		raw, err := img.dev.ReadBlock(img.dataBlockOffset(d.Blocks[i]))
		if err != nil {
			return "", err
		}
		buf = append(buf, raw...)
	}
	return string(buf[:d.Size]), nil
}

// resolvePath walks path per spec.md §4.5, returning the index of the
// directory that should contain the leaf and the leaf's own name. It does
// not require the leaf to exist: callers decide whether absence is
// acceptable (e.g. create() wants a fresh name, cd() wants an existing
// directory).
//
// An empty path, or one consisting only of slashes, names the starting
// directory itself and is returned as (index, "", nil); callers that need
// a concrete descriptor should prefer resolveToIndex.
func (img *Image) resolvePath(path string) (parentIndex uint32, leaf string, err error) {
	current := img.cwd
	if strings.HasPrefix(path, "/") {
		current = RootDescriptorIndex
	}

	components := splitComponents(path)
	if len(components) == 0 {
		return current, "", nil
	}

	hops := 0
	for {
		comp := components[0]
		rest := components[1:]
		isLast := len(rest) == 0

		dir, err := img.readDescriptor(current)
		if err != nil {
			return 0, "", err
		}
		if dir.Type != TypeDirectory {
			return 0, "", NotADirectory
		}

		childIndex, found, err := img.findInDirectory(dir, comp)
		if err != nil {
			return 0, "", err
		}
		if !found {
			if isLast {
				return current, comp, nil
			}
			return 0, "", PathNotFound
		}

		child, err := img.readDescriptor(childIndex)
		if err != nil {
			return 0, "", err
		}

		switch child.Type {
		case TypeDirectory:
			if isLast {
				return current, comp, nil
			}
			current = childIndex
			components = rest
			continue

		case TypeRegular:
			if isLast {
				return current, comp, nil
			}
			return 0, "", NotADirectory

		case TypeSymlink:
			hops++
			if hops > SymlinkHopLimit {
				return 0, "", SymlinkLoop
			}
			target, err := img.readSymlinkTarget(child)
			if err != nil {
				return 0, "", err
			}
			components = append(splitComponents(target), rest...)
			continue

		default:
			return 0, "", PathNotFound
		}
	}
}

// resolveToIndex resolves path all the way down to an existing descriptor
// index, failing with PathNotFound if the leaf doesn't exist.
func (img *Image) resolveToIndex(path string) (uint32, error) {
	parent, leaf, err := img.resolvePath(path)
	if err != nil {
		return 0, err
	}
	if leaf == "" {
		return parent, nil
	}

	dir, err := img.readDescriptor(parent)
	if err != nil {
		return 0, err
	}
	idx, found, err := img.findInDirectory(dir, leaf)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, PathNotFound
	}
	return idx, nil
}
