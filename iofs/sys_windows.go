//go:build windows

package iofs

import (
	"io/fs"
	"syscall"
	"time"

	"github.com/go-projfs/go-projfs/filetime"
)

func attributeData(stat fs.FileInfo) *syscall.Win32FileAttributeData {
	if sys := stat.Sys(); sys != nil {
		if data, ok := sys.(*syscall.Win32FileAttributeData); ok {
			return data
		}
	}
	return nil
}

func sysAttributes(stat fs.FileInfo) (uint32, bool) {
	data := attributeData(stat)
	if data == nil {
		return 0, false
	}
	return data.FileAttributes, true
}

func fromFiletime(ft syscall.Filetime) time.Time {
	return filetime.TimeFromRaw(int64(ft.HighDateTime)<<32 | int64(ft.LowDateTime))
}

func sysTimes(stat fs.FileInfo) (creation, access, write time.Time, ok bool) {
	data := attributeData(stat)
	if data == nil {
		return zeroTime, zeroTime, zeroTime, false
	}
	return fromFiletime(data.CreationTime),
		fromFiletime(data.LastAccessTime),
		fromFiletime(data.LastWriteTime), true
}
