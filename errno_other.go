//go:build !windows

package projfs

import (
	"syscall"
)

func nativeErrno(errno syscall.Errno) (uint32, bool) {
	return 0, false
}
