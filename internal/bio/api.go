package bio

import (
	"github.com/ikle/go-ufs1/internal/devio"
)

// Get returns a cached buffer for (dev, offset, count), creating and
// registering one on a miss. The returned buffer carries a fresh
// reference the caller owns and must release with Put.
func (c *Cache) Get(dev devio.Handle, offset int64, count int, mode Mode) (*Buffer, error) {
	if b := c.lookup(dev, offset, count); b != nil {
		return b, nil
	}

	b, err := newBuffer(c.registry, c.logger, c.metrics, dev, offset, count, mode)
	if err != nil {
		return nil, err
	}

	c.push(b)
	return b, nil
}

// Read fetches (dev, offset, count) and returns it already locked for
// shared access and loaded from the device. The caller must call
// ReadEnd followed by Put when done.
func (c *Cache) Read(dev devio.Handle, offset int64, count int) (*Buffer, error) {
	b, err := c.Get(dev, offset, count, ModeRead)
	if err != nil {
		return nil, err
	}

	if err := b.ReadBegin(); err != nil {
		b.Put()
		return nil, err
	}

	return b, nil
}

// Write fetches (dev, offset, count) and returns it already locked for
// exclusive access. When modify is true the existing contents are
// loaded first; otherwise the buffer is treated as write-only. The
// caller must call WriteEnd followed by Put when done.
func (c *Cache) Write(dev devio.Handle, offset int64, count int, modify bool) (*Buffer, error) {
	mode := ModeWrite
	if modify {
		mode |= ModeRead
	}

	b, err := c.Get(dev, offset, count, mode)
	if err != nil {
		return nil, err
	}

	if err := b.WriteBegin(modify); err != nil {
		b.Put()
		return nil, err
	}

	return b, nil
}

// Sync flushes b if it is dirty, blocking until the write completes.
func (c *Cache) Sync(b *Buffer) error {
	return b.Sync()
}

// ReadAhead opportunistically fetches and begins loading (dev, offset,
// count) without blocking for completion. Errors are discarded: a
// failed read-ahead is indistinguishable from one that simply never
// got scheduled, and a subsequent Read will retry and report it.
func (c *Cache) ReadAhead(dev devio.Handle, offset int64, count int) {
	b, err := c.Get(dev, offset, count, ModeRead)
	if err != nil {
		return
	}
	defer b.Put()

	b.mu.RLock()
	b.loadAsync()
	b.mu.RUnlock()
}
