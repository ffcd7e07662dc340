package snapshot

import "golang.org/x/sys/unix"

// IsBtrfs reports whether path lives on a btrfs filesystem, in which case
// the btrfs snapshotter should be preferred over plain directories.
func IsBtrfs(path string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false
	}
	return st.Type == unix.BTRFS_SUPER_MAGIC
}
