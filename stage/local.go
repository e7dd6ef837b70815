package stage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"
)

type localFileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
}

func (l *localFileInfo) Name() string       { return l.name }
func (l *localFileInfo) Size() int64        { return l.size }
func (l *localFileInfo) IsDir() bool        { return l.isDir }
func (l *localFileInfo) ModTime() time.Time { return l.modTime }

// WrapOSFileInfo converts an os.FileInfo into a stage.FileInfo.
func WrapOSFileInfo(info os.FileInfo) FileInfo {
	return &localFileInfo{
		name:    info.Name(),
		size:    info.Size(),
		isDir:   info.IsDir(),
		modTime: info.ModTime(),
	}
}

// ensure interface is implemented
var _ FS = (*Local)(nil)

// Local implements FS on top of the operating system filesystem.
type Local struct {
	basePath string
}

// NewLocal creates a Local filesystem rooted at basePath.
// If basePath is empty, paths are used as given.
func NewLocal(basePath string) *Local {
	return &Local{basePath: basePath}
}

func (l *Local) resolve(path string) string {
	if l.basePath == "" {
		return path
	}
	return filepath.Join(l.basePath, filepath.Clean(path))
}

func (l *Local) Stat(ctx context.Context, path string) (FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	info, err := os.Stat(l.resolve(path))
	if err != nil {
		return nil, err
	}
	return WrapOSFileInfo(info), nil
}

func (l *Local) List(ctx context.Context, path string) ([]FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(l.resolve(path))
	if err != nil {
		return nil, err
	}

	var infos []FileInfo
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue // skip files that disappeared between ReadDir and Info
		}
		infos = append(infos, WrapOSFileInfo(info))
	}
	return infos, nil
}

func (l *Local) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return os.Open(l.resolve(path))
}

func (l *Local) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullPath := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
}

func (l *Local) Remove(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return os.Remove(l.resolve(path))
}

func (l *Local) Chtimes(ctx context.Context, path string, mtime time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return os.Chtimes(l.resolve(path), time.Now(), mtime)
}
