package optimize

import (
	"bytes"
	"sync"
)

// BufferPool is a pool of byte buffers to reduce allocations
type BufferPool struct {
	pool    sync.Pool
	maxSize int
}

// NewBufferPool creates a pool whose buffers start at initialSize bytes.
// Buffers grown beyond maxSize are dropped instead of pooled.
func NewBufferPool(initialSize, maxSize int) *BufferPool {
	return &BufferPool{
		maxSize: maxSize,
		pool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
	}
}

// Get gets an empty buffer from the pool
func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

// Put resets buf and returns it to the pool
func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf.Cap() > p.maxSize {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}
