// Package lock provides distributed and local locking abstractions.
// For single-node deployments, memory-based locks are used.
// For distributed deployments, Redis-based locks can be used.
package lock

import (
	"context"
	"time"
)

// Locker defines the interface for distributed/local locking.
// This abstraction allows switching between in-memory locks (single-node)
// and Redis-based locks (distributed) without changing business logic.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another process.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)

	// Extend extends the TTL of a held lock.
	// Returns true if the lock was extended, false if it's not held.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsHeld checks if the lock is currently held.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// ProjectAssignment returns a lock key for assignment operations on a project.
// Serializes assign/unassign/status changes for the same project.
func (lockKeys) ProjectAssignment(projectID string) string {
	return "lock:project:assign:" + projectID
}

// UserAssignment returns a lock key for assignment operations involving a user.
// Prevents the same user being assigned to two projects concurrently.
func (lockKeys) UserAssignment(userID string) string {
	return "lock:user:assign:" + userID
}

// UserDeletion returns a lock key for user removal, which may touch both
// the user row and an assigned project.
func (lockKeys) UserDeletion(userID string) string {
	return "lock:user:delete:" + userID
}
