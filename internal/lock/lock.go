// Package lock provides single-flight leases for periodic jobs.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHeld is returned when another holder owns the lease.
var ErrHeld = errors.New("lock: lease held elsewhere")

// Lease is an acquired lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires named leases that expire after ttl if never released.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// LocalLocker serialises holders inside one process.
type LocalLocker struct {
	mu     sync.Mutex
	leases map[string]localEntry
	now    func() time.Time
	seq    uint64
}

type localEntry struct {
	id      uint64
	expires time.Time
}

// NewLocalLocker returns an in-process locker. now may be nil.
func NewLocalLocker(now func() time.Time) *LocalLocker {
	if now == nil {
		now = time.Now
	}
	return &LocalLocker{leases: make(map[string]localEntry), now: now}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(_ context.Context, name string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.leases[name]; ok && now.Before(entry.expires) {
		return nil, ErrHeld
	}
	l.seq++
	l.leases[name] = localEntry{id: l.seq, expires: now.Add(ttl)}
	return &localLease{locker: l, name: name, id: l.seq}, nil
}

type localLease struct {
	locker *LocalLocker
	name   string
	id     uint64
	once   sync.Once
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		defer l.locker.mu.Unlock()
		if entry, ok := l.locker.leases[l.name]; ok && entry.id == l.id {
			delete(l.locker.leases, l.name)
		}
	})
	return nil
}
