// Package version allocates monotonically increasing version numbers per
// persona slug. Allocation serializes on a per-key lock, so concurrent
// builds of the same persona can never mint the same number, while
// different personas never wait on each other.
package version

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Store is the durable side of allocation. MaxVersion returns the highest
// recorded version for a key (0 when none exist). Record durably consumes
// a newly allocated number.
type Store interface {
	MaxVersion(ctx context.Context, key string) (int, error)
	Record(ctx context.Context, key string, version int) error
}

var (
	// ErrLockTimeout means the per-key lock could not be acquired in time.
	ErrLockTimeout = errors.New("version lock timeout")

	// ErrStoreUnavailable wraps store failures during allocation.
	ErrStoreUnavailable = errors.New("version store unavailable")
)

// DefaultLockTimeout bounds how long Next waits on a busy key.
const DefaultLockTimeout = 5 * time.Second

// Allocator hands out version numbers. One channel semaphore per key,
// created lazily and kept for the allocator's lifetime.
type Allocator struct {
	store   Store
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithTimeout sets the lock acquisition timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Allocator) { a.timeout = d }
}

// New creates an Allocator over the given store.
func New(store Store, opts ...Option) *Allocator {
	a := &Allocator{
		store:   store,
		timeout: DefaultLockTimeout,
		locks:   make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next allocates the next version for key: read the current max, add
// one, record it. The whole sequence runs under the key's lock.
//
// A failed Record leaves the number unconsumed. A recorded version stays
// consumed even if the caller's downstream work fails, so stored
// histories may contain gaps; numbers are monotonic and unique, never
// dense.
func (a *Allocator) Next(ctx context.Context, key string) (int, error) {
	release, err := a.acquire(ctx, key)
	if err != nil {
		return 0, err
	}
	defer release()

	current, err := a.store.MaxVersion(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: max version for %q: %w", ErrStoreUnavailable, key, err)
	}

	next := current + 1
	if err := a.store.Record(ctx, key, next); err != nil {
		return 0, fmt.Errorf("%w: record version %d for %q: %w", ErrStoreUnavailable, next, key, err)
	}
	return next, nil
}

// acquire takes the semaphore for key, waiting up to the configured
// timeout. The returned func releases it.
func (a *Allocator) acquire(ctx context.Context, key string) (func(), error) {
	a.mu.Lock()
	lock, ok := a.locks[key]
	if !ok {
		lock = make(chan struct{}, 1)
		a.locks[key] = lock
	}
	a.mu.Unlock()

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: key %q busy for over %s", ErrLockTimeout, key, a.timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
	}
}
