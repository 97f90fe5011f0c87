package types

import (
	"io"
	"io/fs"
)

// FS is the filesystem interface required for hudman operations.
// The OS implementation lives in pkg/filesystem; an afero-backed
// implementation is available for tests that don't exercise real
// rename semantics.
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Streaming operations, used by the fetcher and extractor
	Create(name string) (io.WriteCloser, error)
	Open(name string) (io.ReadCloser, error)

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Mutation
	Remove(name string) error
	RemoveAll(path string) error

	// Rename is the engine's commit primitive: a completed extraction
	// becomes visible through a single rename into the target root.
	Rename(oldpath, newpath string) error
}
