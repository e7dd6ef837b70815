package stage

import (
	"context"
	"io"
	"time"
)

// FileInfo represents the metadata of a staged file or directory.
type FileInfo interface {
	Name() string
	Size() int64
	IsDir() bool
	ModTime() time.Time
}

// FS is the local filesystem capability consumed by candidate selection
// and the backup tee. A typical FS is the real staging disk; tests inject
// an in-memory fake.
type FS interface {
	// Stat returns the FileInfo for the given path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the contents of the given directory.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// OpenRead opens a file for streaming reads.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)

	// Create opens a file for streaming writes, creating parent
	// directories as needed and truncating any existing content.
	Create(ctx context.Context, path string) (io.WriteCloser, error)

	// Remove deletes a single file. Used to complete a move after the
	// remote copy has been confirmed.
	Remove(ctx context.Context, path string) error

	// Chtimes sets the modification time on a file, preserving the
	// original timestamp on backup copies.
	Chtimes(ctx context.Context, path string, mtime time.Time) error
}
