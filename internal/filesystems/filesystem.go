package filesystems

import (
	"io/fs"
	"iter"
)

// FileSystem abstracts the file access topology loading needs, so tests can
// run against an in-memory tree.
type FileSystem interface {
	// ReadFile reads the named file and returns its contents
	ReadFile(name string) ([]byte, error)

	// ReadDir reads the named directory and returns an iterator over directory entries
	ReadDir(name string) iter.Seq2[DirEntry, error]

	// IsDir reports whether path names an existing directory
	IsDir(path string) bool

	// Join joins path elements into a single path
	Join(elem ...string) string

	// Dir returns all but the last element of path
	Dir(path string) string

	// Base returns the last element of path
	Base(path string) string
}

// DirEntry provides information about a directory entry
type DirEntry interface {
	Name() string
	IsDir() bool
	Type() fs.FileMode
}
