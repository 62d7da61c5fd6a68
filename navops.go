package blockfs

// DirEntry is one (name, descriptor index) pair reported by Ls.
type DirEntry struct {
	Name  string
	Index uint32
}

// Cd implements spec.md §4.8 "cd": resolve path to an existing directory
// and make it the current working directory. Symlinks along the way are
// followed as usual by resolvePath.
func (e *Engine) Cd(path string) error {
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
	if d.Type != TypeDirectory {
		return TypeMismatch
	}

	img.cwd = index
	return nil
}

// Pwd returns the descriptor index of the current working directory. The
// engine tracks cwd purely as an index (spec.md §3); reconstructing the
// textual path is left to callers willing to walk ".." chains themselves.
func (e *Engine) Pwd() (uint32, error) {
	img, err := e.requireMounted()
	if err != nil {
		return 0, err
	}
	return img.cwd, nil
}

// Ls lists the live entries of the current working directory.
func (e *Engine) Ls() ([]DirEntry, error) {
	img, err := e.requireMounted()
	if err != nil {
		return nil, err
	}

	dir, err := img.readDescriptor(img.cwd)
	if err != nil {
		return nil, err
	}
	if dir.Type != TypeDirectory {
		return nil, NotADirectory
	}

	entries := make([]DirEntry, 0, numDirPairs(dir))
	for pair := 0; pair < numDirPairs(dir); pair++ {
		if pairNameAddr(dir, pair) == UnusedAddr {
			continue
		}
		name, err := img.readName(pairNameAddr(dir, pair))
		if err != nil {
			return nil, err
		}
		entries = append(entries, DirEntry{Name: name, Index: pairChildIndex(dir, pair)})
	}
	return entries, nil
}
