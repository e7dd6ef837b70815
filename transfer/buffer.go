package transfer

import (
	"sync"
)

// DefaultBufferSize is the copy buffer size used when streaming
// candidates into the backup directory.
const DefaultBufferSize = 512 * 1024

// BufferPool manages reusable copy buffers shared between the backup tee
// workers.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a BufferPool allocating buffers of the given
// size. If size is <= 0, DefaultBufferSize is used.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

// Get retrieves a buffer from the pool. Callers should defer Put.
func (bp *BufferPool) Get() *[]byte {
	return bp.pool.Get().(*[]byte)
}

// Put returns the buffer to the pool. The caller must not touch the
// buffer afterwards.
func (bp *BufferPool) Put(b *[]byte) {
	if b != nil {
		bp.pool.Put(b)
	}
}
