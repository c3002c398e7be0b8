// Package devio implements the block-device simplified API: positional
// pull/push against an opaque device handle, plus a one-shot
// asynchronous submit/join primitive used by internal/bio to back
// async reads and writes.
package devio

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Handle identifies a device opened through a Registry. It is opaque
// and stable for the device's lifetime; callers open it, and release
// it only after every buffer referring to it has been released.
type Handle int

// Registry maps device handles to their underlying file descriptors.
// A Registry is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	next Handle
	fds  map[Handle]int
}

// NewRegistry returns an empty device registry.
func NewRegistry() *Registry {
	return &Registry{fds: make(map[Handle]int)}
}

// Open registers an already-opened file descriptor and returns the
// handle callers should use to refer to it.
func (r *Registry) Open(fd int) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	h := r.next
	r.fds[h] = fd
	return h
}

// Close releases the handle. It does not close the underlying fd;
// callers opened it and are responsible for closing it.
func (r *Registry) Close(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.fds, h)
}

func (r *Registry) fd(h Handle) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fd, ok := r.fds[h]
	if !ok {
		return 0, errors.Errorf("devio: unknown device handle %d", h)
	}
	return fd, nil
}

// Pull allocates a count-byte buffer and positional-reads it from the
// device at offset. A short read or allocation failure returns an
// error and no partial buffer.
func (r *Registry) Pull(h Handle, offset int64, count int) ([]byte, error) {
	fd, err := r.fd(h)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, count)

	n, err := unix.Pread(fd, buf, offset)
	if err != nil {
		return nil, errors.Wrapf(err, "devio: pread device %d at %d", h, offset)
	}
	if n != count {
		return nil, errors.Errorf("devio: short read from device %d at %d: got %d, want %d", h, offset, n, count)
	}

	return buf, nil
}

// Push positional-writes data to the device at offset.
func (r *Registry) Push(h Handle, offset int64, data []byte) error {
	fd, err := r.fd(h)
	if err != nil {
		return err
	}

	n, err := unix.Pwrite(fd, data, offset)
	if err != nil {
		return errors.Wrapf(err, "devio: pwrite device %d at %d", h, offset)
	}
	if n != len(data) {
		return errors.Errorf("devio: short write to device %d at %d: wrote %d, want %d", h, offset, n, len(data))
	}

	return nil
}
