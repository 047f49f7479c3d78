package ports

import "context"

// LoginLock serializes concurrent first logins for the same identity.
// The by-email lookup in reconciliation is check-then-act; without a
// lock, two simultaneous first logins can transiently create two
// downstream accounts. Single-node deployments may use NopLoginLock.
type LoginLock interface {
	// Acquire takes the lock for key. Returns false without error when the
	// lock is currently held elsewhere.
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// NopLoginLock always grants the lock. The default for single-node
// deployments where the race is an accepted risk.
type NopLoginLock struct{}

func (NopLoginLock) Acquire(context.Context, string) (bool, error) { return true, nil }
func (NopLoginLock) Release(context.Context, string) error         { return nil }
