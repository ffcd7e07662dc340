//go:build !linux

package snapshot

// IsBtrfs is always false on platforms without btrfs.
func IsBtrfs(string) bool { return false }
