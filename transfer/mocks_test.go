package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fleetops/stagepush/remote"
	"github.com/fleetops/stagepush/stage"
)

type memFileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
}

func (m *memFileInfo) Name() string       { return m.name }
func (m *memFileInfo) Size() int64        { return m.size }
func (m *memFileInfo) IsDir() bool        { return m.isDir }
func (m *memFileInfo) ModTime() time.Time { return m.modTime }

type memFile struct {
	data    []byte
	modTime time.Time
	isDir   bool
}

// memFS is an in-memory stage.FS with injectable faults.
type memFS struct {
	mu         sync.Mutex
	files      map[string]*memFile
	failReads  map[string]error
	failWrites map[string]error
}

func newMemFS() *memFS {
	return &memFS{
		files:      make(map[string]*memFile),
		failReads:  make(map[string]error),
		failWrites: make(map[string]error),
	}
}

func (m *memFS) addDir(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &memFile{isDir: true}
}

func (m *memFS) addFile(path string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &memFile{data: data, modTime: modTime}
}

func (m *memFS) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *memFS) Stat(ctx context.Context, path string) (stage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return &memFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.data)),
		isDir:   f.isDir,
		modTime: f.modTime,
	}, nil
}

func (m *memFS) List(ctx context.Context, dir string) ([]stage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.files[dir]; !ok || !f.isDir {
		return nil, fmt.Errorf("directory not found: %s", dir)
	}

	prefix := dir + "/"
	var infos []stage.FileInfo
	for path, f := range m.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		if strings.Contains(rest, "/") {
			continue
		}
		infos = append(infos, &memFileInfo{
			name:    rest,
			size:    int64(len(f.data)),
			isDir:   f.isDir,
			modTime: f.modTime,
		})
	}
	return infos, nil
}

func (m *memFS) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failReads[path]; ok {
		return nil, err
	}
	f, ok := m.files[path]
	if !ok || f.isDir {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type memWriter struct {
	fs   *memFS
	path string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.files[w.path] = &memFile{data: w.buf.Bytes()}
	return nil
}

func (m *memFS) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failWrites[path]; ok {
		return nil, err
	}
	return &memWriter{fs: m, path: path}, nil
}

func (m *memFS) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("file not found: %s", path)
	}
	delete(m.files, path)
	return nil
}

func (m *memFS) Chtimes(ctx context.Context, path string, mtime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.files[path]; ok {
		f.modTime = mtime
	}
	return nil
}

// mockSession is a scripted remote.Session recording every call.
type mockSession struct {
	mu           sync.Mutex
	destExists   bool
	verifyErr    error
	failPuts     map[string]error // keyed by bare filename
	puts         []string
	putPayloads  map[string][]byte
	closeCount   int
	onPut        func(name string)
}

func newMockSession(destExists bool) *mockSession {
	return &mockSession{
		destExists:  destExists,
		failPuts:    make(map[string]error),
		putPayloads: make(map[string][]byte),
	}
}

func (s *mockSession) Verify(ctx context.Context, path string) (bool, error) {
	if s.verifyErr != nil {
		return false, s.verifyErr
	}
	return s.destExists, nil
}

func (s *mockSession) Put(ctx context.Context, path string, r io.Reader) error {
	name := path[strings.LastIndex(path, "/")+1:]
	if s.onPut != nil {
		s.onPut(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failPuts[name]; ok {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.puts = append(s.puts, path)
	s.putPayloads[name] = data
	return nil
}

func (s *mockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return nil
}

func (s *mockSession) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

// mockDialer hands out a prepared session or fails.
type mockDialer struct {
	sess    *mockSession
	dialErr error
	dials   int
}

func (d *mockDialer) Dial(ctx context.Context, ep remote.Endpoint) (remote.Session, error) {
	d.dials++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.sess, nil
}
