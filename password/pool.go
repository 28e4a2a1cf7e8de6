package password

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent hashing work. Callers waiting for a slot give up
// when their context is cancelled.
type Pool struct {
	hasher Hasher
	sem    *semaphore.Weighted
}

// NewPool wraps hasher; size <= 0 selects GOMAXPROCS.
func NewPool(hasher Hasher, size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{hasher: hasher, sem: semaphore.NewWeighted(int64(size))}
}

// Hash hashes password once a worker slot is available.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)
	return p.hasher.Hash(password)
}

// Verify checks password against encodedHash once a worker slot is available.
func (p *Pool) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)
	return p.hasher.Verify(password, encodedHash)
}

// NeedsUpgrade delegates to the wrapped hasher when it supports upgrades.
func (p *Pool) NeedsUpgrade(encodedHash string) (bool, error) {
	if up, ok := p.hasher.(Upgrader); ok {
		return up.NeedsUpgrade(encodedHash)
	}
	return false, nil
}
