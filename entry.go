package projfs

import (
	"time"

	"github.com/go-projfs/go-projfs/filetime"
)

// DirectoryEntry is one child of a directory, as reported by a
// Source. DirectoryInfo and FileInfo are the implementations.
type DirectoryEntry interface {
	// EntryName is the single path component of the entry.
	EntryName() string

	// BasicInfo converts the entry into the record of the host.
	BasicInfo() FileBasicInfo
}

// DirectoryInfo describes a directory entry.
//
// The zero time is reported to the host as unknown.
type DirectoryInfo struct {
	Name           string
	Attributes     uint32
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
}

func (d DirectoryInfo) EntryName() string {
	return d.Name
}

func (d DirectoryInfo) BasicInfo() FileBasicInfo {
	return FileBasicInfo{
		IsDirectory:    true,
		FileSize:       0,
		CreationTime:   filetime.Timestamp(d.CreationTime),
		LastAccessTime: filetime.Timestamp(d.LastAccessTime),
		LastWriteTime:  filetime.Timestamp(d.LastWriteTime),
		ChangeTime:     filetime.Timestamp(d.LastWriteTime),
		FileAttributes: d.Attributes | FILE_ATTRIBUTE_DIRECTORY,
	}
}

// FileInfo describes a regular file entry.
type FileInfo struct {
	Name           string
	Size           int64
	Attributes     uint32
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
}

func (f FileInfo) EntryName() string {
	return f.Name
}

func (f FileInfo) BasicInfo() FileBasicInfo {
	return FileBasicInfo{
		IsDirectory:    false,
		FileSize:       f.Size,
		CreationTime:   filetime.Timestamp(f.CreationTime),
		LastAccessTime: filetime.Timestamp(f.LastAccessTime),
		LastWriteTime:  filetime.Timestamp(f.LastWriteTime),
		ChangeTime:     filetime.Timestamp(f.LastWriteTime),
		FileAttributes: f.Attributes &^ FILE_ATTRIBUTE_DIRECTORY,
	}
}

var (
	_ DirectoryEntry = DirectoryInfo{}
	_ DirectoryEntry = FileInfo{}
)
