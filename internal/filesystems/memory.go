package filesystems

import (
	"fmt"
	"io/fs"
	"iter"
	"path"
	"sort"
	"strings"
)

// MemoryFS implements FileSystem for in-memory filesystem operations
type MemoryFS struct {
	files map[string][]byte
	dirs  map[string]bool
}

func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// AddFile adds a file and its parent directories to the memory filesystem
func (mfs *MemoryFS) AddFile(name string, content []byte) {
	name = path.Clean(name)
	mfs.files[name] = content
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		mfs.dirs[dir] = true
	}
}

func (mfs *MemoryFS) ReadFile(name string) ([]byte, error) {
	content, exists := mfs.files[path.Clean(name)]
	if !exists {
		return nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist)
	}
	return content, nil
}

func (mfs *MemoryFS) ReadDir(name string) iter.Seq2[DirEntry, error] {
	return func(yield func(DirEntry, error) bool) {
		dir := path.Clean(name)
		if dir != "." && !mfs.dirs[dir] {
			yield(nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist))
			return
		}

		children := make(map[string]bool) // name -> isDir
		collect := func(p string, isDir bool) {
			rest := p
			if dir != "." {
				if !strings.HasPrefix(p, dir+"/") {
					return
				}
				rest = strings.TrimPrefix(p, dir+"/")
			}
			child, deeper, _ := strings.Cut(rest, "/")
			if child == "" {
				return
			}
			children[child] = children[child] || isDir || deeper != ""
		}
		for p := range mfs.files {
			collect(p, false)
		}
		for p := range mfs.dirs {
			collect(p, true)
		}

		names := make([]string, 0, len(children))
		for n := range children {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, n := range names {
			if !yield(memoryDirEntry{name: n, isDir: children[n]}, nil) {
				return
			}
		}
	}
}

func (mfs *MemoryFS) IsDir(p string) bool {
	p = path.Clean(p)
	return p == "." || mfs.dirs[p]
}

func (mfs *MemoryFS) Join(elem ...string) string {
	return path.Join(elem...)
}

func (mfs *MemoryFS) Dir(p string) string {
	return path.Dir(p)
}

func (mfs *MemoryFS) Base(p string) string {
	return path.Base(p)
}

type memoryDirEntry struct {
	name  string
	isDir bool
}

func (e memoryDirEntry) Name() string { return e.name }
func (e memoryDirEntry) IsDir() bool  { return e.isDir }

func (e memoryDirEntry) Type() fs.FileMode {
	if e.isDir {
		return fs.ModeDir
	}
	return 0
}
