package model

import "path/filepath"

// FileRef identifies a discovered document. RelPath is relative to the
// source root and is preserved when the file is archived.
type FileRef struct {
	Path    string
	RelPath string
	Size    int64
}

// Name returns the base file name.
func (f FileRef) Name() string {
	return filepath.Base(f.Path)
}

// DocumentGroup is the set of files destined for one company.
type DocumentGroup struct {
	Company string
	Files   []FileRef
}

// TotalSize returns the sum of the file sizes in the group.
func (g DocumentGroup) TotalSize() int64 {
	var total int64
	for _, f := range g.Files {
		total += f.Size
	}
	return total
}

// FileNames returns the base names of the group's files in order.
func (g DocumentGroup) FileNames() []string {
	names := make([]string, 0, len(g.Files))
	for _, f := range g.Files {
		names = append(names, f.Name())
	}
	return names
}
