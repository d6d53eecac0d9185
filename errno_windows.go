//go:build windows

package projfs

import (
	"syscall"
)

// nativeErrno accepts the errno values which are plain Win32 error
// codes, leaving the invented POSIX ones to syscallWin32Map.
func nativeErrno(errno syscall.Errno) (uint32, bool) {
	if errno == 0 || uint32(errno) >= 1<<29 {
		return 0, false
	}
	return uint32(errno), true
}
