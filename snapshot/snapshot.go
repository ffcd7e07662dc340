// Package snapshot abstracts the copy-on-write filesystem primitives a
// pull stages into: create an empty snapshot, remove one, and clone one
// into an independent copy.
package snapshot

import "context"

// Snapshotter manipulates snapshot directories under an image root.
type Snapshotter interface {
	// Create makes a fresh, empty snapshot at path.
	Create(ctx context.Context, path string) error
	// Remove destroys the snapshot at path. Removing a path that does not
	// exist is not an error.
	Remove(ctx context.Context, path string) error
	// Clone materializes an independent copy of src at dst.
	Clone(ctx context.Context, src, dst string) error
}
