package projfs

import (
	"io"
	"strings"
)

// Source is the data source projected into the virtualization
// root. It is the only mandatory part of a projection.
//
// Paths are relative to the virtualization root, separated by
// slashes and empty for the root itself. The host compares
// names case-insensitively, so a source may be asked for a path
// in a different case than it reported.
//
// The calls are serialized by the projection, so the source
// needs no locking of its own unless it is shared elsewhere.
type Source interface {
	// ListDirectory returns the children of the directory in
	// any order. An error matching ErrNotFound reports that
	// the directory does not exist.
	ListDirectory(path string) ([]DirectoryEntry, error)

	// StreamFileContent returns a reader yielding exactly the
	// length bytes of the file starting at offset. ErrOutOfRange
	// is returned when the range exceeds the file.
	//
	// The reader is closed after the request when it is also
	// an io.Closer.
	StreamFileContent(path string, offset int64, length int) (io.Reader, error)
}

// BehaviourGetDirectoryEntry looks up a single entry.
//
// Without it the entry is found by listing the parent and
// comparing names in the order of the host.
type BehaviourGetDirectoryEntry interface {
	GetDirectoryEntry(path string) (DirectoryEntry, error)
}

// BehaviourNotification observes the file system events of the
// projection, and may veto those which are still pending.
type BehaviourNotification interface {
	HandleNotification(notification *Notification) ControlFlow
}

// BehaviourDefaultOptions contributes the default options of a
// source, which are applied before the options of Start.
type BehaviourDefaultOptions interface {
	DefaultOptions() []Option
}

// ControlFlow is the verdict on a notification.
type ControlFlow int

const (
	// Continue lets the operation proceed.
	Continue ControlFlow = iota

	// Break vetoes the operation, which only takes effect for
	// the notification kinds that are Cancelable.
	Break
)

func (c ControlFlow) String() string {
	if c == Break {
		return "Break"
	}
	return "Continue"
}

// sourcePath converts the path of the host into a source path.
func sourcePath(hostPath string) string {
	return strings.Trim(strings.ReplaceAll(hostPath, `\`, "/"), "/")
}

// splitSourcePath splits the source path into the parent
// directory and the last path component.
func splitSourcePath(path string) (string, string) {
	index := strings.LastIndexByte(path, '/')
	if index < 0 {
		return "", path
	}
	return path[:index], path[index+1:]
}

// replaceHostName replaces the last component of the host path,
// keeping the separators of the host.
func replaceHostName(hostPath, name string) string {
	index := strings.LastIndexAny(hostPath, `\/`)
	if index < 0 {
		return name
	}
	return hostPath[:index+1] + name
}

// InRange reports whether the length bytes starting at offset
// lie within a file of the size.
func InRange(offset int64, length int, size int64) bool {
	return offset >= 0 && length >= 0 && size >= 0 &&
		offset <= size && int64(length) <= size-offset
}
