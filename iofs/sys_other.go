//go:build !windows

package iofs

import (
	"io/fs"
	"time"
)

func sysAttributes(fs.FileInfo) (uint32, bool) {
	return 0, false
}

func sysTimes(fs.FileInfo) (creation, access, write time.Time, ok bool) {
	return zeroTime, zeroTime, zeroTime, false
}
