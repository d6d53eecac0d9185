package regsource

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows/registry"

	"github.com/go-projfs/go-projfs"
)

// Source is the registry key source.
type Source struct {
	root registry.Key
	path string
}

// New projects the key at the path below the root key, which
// is opened again for every request.
func New(root registry.Key, path string) *Source {
	return &Source{
		root: root,
		path: strings.Trim(path, `\`),
	}
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

func (s *Source) keyPath(path string) string {
	if path == "" {
		return s.path
	}
	path = strings.ReplaceAll(path, "/", `\`)
	if s.path == "" {
		return path
	}
	return s.path + `\` + path
}

func (s *Source) open(path string, access uint32) (registry.Key, error) {
	key, err := registry.OpenKey(s.root, s.keyPath(path), access)
	if errors.Is(err, registry.ErrNotExist) {
		return 0, errors.Wrapf(projfs.ErrNotFound, "open key %q", path)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "open key %q", path)
	}
	return key, nil
}

func modTime(key registry.Key) time.Time {
	stat, err := key.Stat()
	if err != nil {
		return time.Time{}
	}
	return stat.ModTime()
}

func directory(name string, modified time.Time) projfs.DirectoryInfo {
	return projfs.DirectoryInfo{
		Name:           name,
		CreationTime:   modified,
		LastAccessTime: modified,
		LastWriteTime:  modified,
	}
}

func valueSize(key registry.Key, name string) (int, error) {
	size, _, err := key.GetValue(name, nil)
	return size, err
}

func file(name string, size int, modified time.Time) projfs.FileInfo {
	return projfs.FileInfo{
		Name:           name,
		Size:           int64(size),
		Attributes:     projfs.FILE_ATTRIBUTE_READONLY,
		CreationTime:   modified,
		LastAccessTime: modified,
		LastWriteTime:  modified,
	}
}

// children returns the subkeys and the values of the key which
// are part of the tree.
func children(key registry.Key) ([]string, []string, error) {
	subkeys, err := key.ReadSubKeyNames(-1)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read subkey names")
	}
	values, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read value names")
	}
	keys := subkeys[:0]
	folded := make(map[string]bool)
	for _, name := range subkeys {
		if validName(name) {
			keys = append(keys, name)
			folded[strings.ToUpper(name)] = true
		}
	}
	files := values[:0]
	for _, name := range values {
		if validName(name) && !folded[strings.ToUpper(name)] {
			files = append(files, name)
		}
	}
	return keys, files, nil
}

func (s *Source) ListDirectory(path string) ([]projfs.DirectoryEntry, error) {
	key, err := s.open(path,
		registry.ENUMERATE_SUB_KEYS|registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer func() { _ = key.Close() }()
	subkeys, values, err := children(key)
	if err != nil {
		return nil, errors.Wrapf(err, "list %q", path)
	}
	modified := modTime(key)
	var result []projfs.DirectoryEntry
	for _, name := range subkeys {
		subkeyModified := modified
		if subkey, err := registry.OpenKey(
			key, name, registry.QUERY_VALUE); err == nil {
			subkeyModified = modTime(subkey)
			_ = subkey.Close()
		}
		result = append(result, directory(name, subkeyModified))
	}
	for _, name := range values {
		size, err := valueSize(key, name)
		if err != nil {
			// Removed while listing.
			continue
		}
		result = append(result, file(name, size, modified))
	}
	return result, nil
}

func splitPath(path string) (string, string) {
	index := strings.LastIndexByte(path, '/')
	if index < 0 {
		return "", path
	}
	return path[:index], path[index+1:]
}

func (s *Source) GetDirectoryEntry(path string) (projfs.DirectoryEntry, error) {
	if path == "" {
		key, err := s.open("", registry.QUERY_VALUE)
		if err != nil {
			return nil, err
		}
		defer func() { _ = key.Close() }()
		return directory("", modTime(key)), nil
	}
	parent, base := splitPath(path)
	key, err := s.open(parent,
		registry.ENUMERATE_SUB_KEYS|registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer func() { _ = key.Close() }()
	subkeys, values, err := children(key)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup %q", path)
	}
	for _, name := range subkeys {
		if strings.EqualFold(name, base) {
			modified := modTime(key)
			if subkey, err := registry.OpenKey(
				key, name, registry.QUERY_VALUE); err == nil {
				modified = modTime(subkey)
				_ = subkey.Close()
			}
			return directory(name, modified), nil
		}
	}
	for _, name := range values {
		if strings.EqualFold(name, base) {
			size, err := valueSize(key, name)
			if err != nil {
				break
			}
			return file(name, size, modTime(key)), nil
		}
	}
	return nil, errors.Wrapf(projfs.ErrNotFound, "lookup %q", path)
}

func (s *Source) StreamFileContent(
	path string, offset int64, length int,
) (io.Reader, error) {
	parent, base := splitPath(path)
	key, err := s.open(parent, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer func() { _ = key.Close() }()
	size, err := valueSize(key, base)
	if errors.Is(err, registry.ErrNotExist) {
		return nil, errors.Wrapf(projfs.ErrNotFound, "read %q", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %q", path)
	}
	if !projfs.InRange(offset, length, int64(size)) {
		return nil, errors.Wrapf(projfs.ErrOutOfRange,
			"read %q at %d+%d of %d", path, offset, length, size)
	}
	data := make([]byte, size)
	n, _, err := key.GetValue(base, data)
	if err != nil {
		return nil, errors.Wrapf(err, "read %q", path)
	}
	if !projfs.InRange(offset, length, int64(n)) {
		return nil, errors.Wrapf(projfs.ErrOutOfRange,
			"read %q at %d+%d: value shrunk to %d", path, offset, length, n)
	}
	return bytes.NewReader(data[offset : offset+int64(length)]), nil
}

var (
	_ projfs.Source                     = (*Source)(nil)
	_ projfs.BehaviourGetDirectoryEntry = (*Source)(nil)
)
