package utils

import "golang.org/x/sys/unix"

// ExchangePaths atomically swaps two existing paths via renameat2 with
// RENAME_EXCHANGE, so at no point does either name dangle. Used by
// finalization to replace a local copy without a window where neither the
// old nor the new resource exists.
func ExchangePaths(a, b string) error {
	return unix.Renameat2(unix.AT_FDCWD, a, unix.AT_FDCWD, b, unix.RENAME_EXCHANGE)
}
