// Package device provides exclusive per-accelerator locking. Every
// generation that touches model state on a device must hold that
// device's lock for the whole run; concurrent inference on one device
// causes OOM or corrupt output.
package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/jrtorrez31337/pyvs/internal/observability"
)

// Registry holds one lock per accelerator device. Devices are created
// once at startup and live for the process lifetime.
type Registry struct {
	locks []*deviceLock
}

type deviceLock struct {
	index int
	mu    sync.Mutex
}

// Handle represents a held device lock. Release must be called on every
// exit path of the critical section.
type Handle struct {
	lock     *deviceLock
	mu       sync.Mutex
	released bool
}

// NewRegistry creates a registry with count independent devices.
func NewRegistry(count int) *Registry {
	locks := make([]*deviceLock, count)
	for i := range locks {
		locks[i] = &deviceLock{index: i}
	}
	return &Registry{locks: locks}
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	return len(r.locks)
}

// Acquire blocks until exclusive access to the device is granted.
// There is no timeout: a caller waits indefinitely while the device is
// busy. Callers queue in the order determined by the mutex's wait
// semantics; no fairness beyond that is guaranteed.
func (r *Registry) Acquire(index int) (*Handle, error) {
	if index < 0 || index >= len(r.locks) {
		return nil, fmt.Errorf("invalid device index %d (have %d devices)", index, len(r.locks))
	}

	l := r.locks[index]
	start := time.Now()
	l.mu.Lock()
	observability.RecordDeviceAcquired(time.Since(start))

	return &Handle{lock: l}, nil
}

// TryAcquire attempts to take the device lock without blocking.
// Returns nil and false when the device is busy. Used only by status
// surfaces; generation paths always use the blocking Acquire.
func (r *Registry) TryAcquire(index int) (*Handle, bool) {
	if index < 0 || index >= len(r.locks) {
		return nil, false
	}

	l := r.locks[index]
	if !l.mu.TryLock() {
		return nil, false
	}
	observability.RecordDeviceHeld()

	return &Handle{lock: l}, true
}

// Busy reports whether the device is currently held, without acquiring
// it for longer than the probe itself.
func (r *Registry) Busy(index int) bool {
	h, ok := r.TryAcquire(index)
	if !ok {
		return true
	}
	h.Release()
	return false
}

// Device returns the index of the device this handle locks.
func (h *Handle) Device() int {
	return h.lock.index
}

// Release unlocks the device. Safe to call more than once; only the
// first call has effect, so it can sit in a defer alongside explicit
// early releases.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return
	}
	h.released = true
	h.lock.mu.Unlock()
	observability.RecordDeviceReleased()
}
