package utils

import "syscall"

// IsProcessAlive returns true if a process with the given PID currently
// exists. Uses kill(pid, 0) — no signal is sent, only existence is checked.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
