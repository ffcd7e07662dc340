//go:build !linux

package utils

import "os"

// ExchangePaths swaps two paths. Without renameat2 the swap is two renames
// with a brief window where b does not exist; Linux gets the atomic version.
func ExchangePaths(a, b string) error {
	aside := TempName(b)
	if err := os.Rename(b, aside); err != nil {
		return err
	}
	if err := os.Rename(a, b); err != nil {
		_ = os.Rename(aside, b)
		return err
	}
	return os.Rename(aside, a)
}
