package storage

import "context"

// Initer is optionally implemented by T to initialize zero-value fields
// (e.g., nil maps) after deserialization or when the backing store is empty.
type Initer interface {
	Init()
}

// Store provides locked read/modify/write access to a data store.
// T is the top-level structure managed by the store.
type Store[T any] interface {
	// With loads the data under lock and passes it to fn; the lock is held
	// for the duration of fn.
	With(ctx context.Context, fn func(*T) error) error
	// Update performs a read-modify-write under lock. If fn returns nil the
	// data is persisted.
	Update(ctx context.Context, fn func(*T) error) error

	// Read deserializes the data and passes it to fn without acquiring the
	// lock. The caller must already hold it via TryLock.
	Read(fn func(*T) error) error
	// Write deserializes, runs fn, and atomically persists if fn returns
	// nil. The caller must already hold the lock via TryLock.
	Write(fn func(*T) error) error
	// TryLock attempts to acquire the lock without blocking; (false, nil)
	// means another caller holds it. On success the caller must Unlock.
	TryLock(ctx context.Context) (bool, error)
	// Unlock releases a lock previously acquired by TryLock.
	Unlock(ctx context.Context) error
}
