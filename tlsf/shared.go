package tlsf

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/suballoc"
	"github.com/vkngwrapper/arsenal/suballoc/internal/utils"
)

// SharedPool guards a Pool with an exclusive lock so that it can be used from several
// goroutines. Every operation, including Alloc, modifies the pool's free lists, so there is no
// read-only fast path.
type SharedPool struct {
	mutex utils.OptionalMutex
	pool  *Pool
}

// NewSharedPool wraps pool. If externallySynchronized is true, the caller promises to serialize
// access itself and the lock is skipped. The pool must not be used directly afterward.
func NewSharedPool(pool *Pool, externallySynchronized bool) *SharedPool {
	return &SharedPool{
		mutex: utils.OptionalMutex{UseMutex: !externallySynchronized},
		pool:  pool,
	}
}

// Alloc behaves like Pool.Alloc
func (p *SharedPool) Alloc(size uint32) uint32 {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.pool.Alloc(size)
}

// Free behaves like Pool.Free
func (p *SharedPool) Free(offset uint32) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.pool.Free(offset)
}

// Realloc behaves like Pool.Realloc. move is called while the lock is held.
func (p *SharedPool) Realloc(offset, newSize uint32, move MoveFunc) (uint32, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.pool.Realloc(offset, newSize, move)
}

// Grow behaves like Pool.Grow
func (p *SharedPool) Grow(newCapacity uint32) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.pool.Grow(newCapacity)
}

func (p *SharedPool) Validate() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.pool.Validate()
}

func (p *SharedPool) AddStatistics(stats *suballoc.Statistics) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.pool.AddStatistics(stats)
}

func (p *SharedPool) AddDetailedStatistics(stats *suballoc.DetailedStatistics) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.pool.AddDetailedStatistics(stats)
}

func (p *SharedPool) PrintDetailedMap(writer *jwriter.Writer) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.pool.PrintDetailedMap(writer)
}
