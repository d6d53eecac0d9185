// Package memsource is an in-memory projfs.Source, holding a
// static tree of directories and files.
//
// The tree is kept in a btree ordered by the upper cased path,
// so that the children of a directory are a contiguous range
// and lookups are as case-insensitive as the host.
package memsource

import (
	"bytes"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/go-projfs/go-projfs"
)

type memItem struct {
	key     string
	dir     bool
	dirInfo projfs.DirectoryInfo
	info    projfs.FileInfo
	data    []byte
}

func (m *memItem) entry() projfs.DirectoryEntry {
	if m.dir {
		return m.dirInfo
	}
	return m.info
}

func lessItem(a, b *memItem) bool {
	return a.key < b.key
}

// Source is the in-memory source. It is safe for concurrent
// use, so it can be populated while being projected.
type Source struct {
	mtx  sync.RWMutex
	tree *btree.BTreeG[*memItem]
}

// New creates an empty source.
func New() *Source {
	return &Source{tree: btree.NewG(16, lessItem)}
}

func cleanPath(name string) string {
	name = path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	return strings.TrimPrefix(name, "/")
}

func itemKey(name string) string {
	return strings.ToUpper(name)
}

func (s *Source) lookup(name string) *memItem {
	item, ok := s.tree.Get(&memItem{key: itemKey(name)})
	if !ok {
		return nil
	}
	return item
}

// ensureParents creates the missing parent directories of name.
//
// Must be called with the mutex held.
func (s *Source) ensureParents(name string) {
	parent := path.Dir(name)
	if parent == "." || parent == "" {
		return
	}
	if item := s.lookup(parent); item != nil && item.dir {
		return
	}
	s.ensureParents(parent)
	s.tree.ReplaceOrInsert(&memItem{
		key:     itemKey(parent),
		dir:     true,
		dirInfo: projfs.DirectoryInfo{Name: path.Base(parent)},
	})
}

// AddDirectory adds the directory at the path, creating the
// missing parents. The name of the info is that of the path.
func (s *Source) AddDirectory(name string, info projfs.DirectoryInfo) {
	name = cleanPath(name)
	if name == "" {
		return
	}
	info.Name = path.Base(name)
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.ensureParents(name)
	s.tree.ReplaceOrInsert(&memItem{
		key:     itemKey(name),
		dir:     true,
		dirInfo: info,
	})
}

// AddFile adds the file at the path, creating the missing
// parents. The size of the info is that of the content, unless
// the content is nil: then the file reads as info.Size zeros.
func (s *Source) AddFile(name string, info projfs.FileInfo, content []byte) {
	name = cleanPath(name)
	if name == "" {
		return
	}
	info.Name = path.Base(name)
	if content != nil {
		info.Size = int64(len(content))
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.ensureParents(name)
	s.tree.ReplaceOrInsert(&memItem{
		key:  itemKey(name),
		info: info,
		data: content,
	})
}

// Remove removes the entry at the path, and all of its children.
func (s *Source) Remove(name string) bool {
	name = cleanPath(name)
	if name == "" {
		return false
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	item, ok := s.tree.Delete(&memItem{key: itemKey(name)})
	if !ok {
		return false
	}
	if item.dir {
		var children []*memItem
		prefix := item.key + "/"
		s.tree.AscendGreaterOrEqual(&memItem{key: prefix}, func(child *memItem) bool {
			if !strings.HasPrefix(child.key, prefix) {
				return false
			}
			children = append(children, child)
			return true
		})
		for _, child := range children {
			s.tree.Delete(child)
		}
	}
	return true
}

func (s *Source) ListDirectory(name string) ([]projfs.DirectoryEntry, error) {
	name = cleanPath(name)
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	prefix := ""
	if name != "" {
		item := s.lookup(name)
		if item == nil || !item.dir {
			return nil, projfs.ErrNotFound
		}
		prefix = item.key + "/"
	}
	var result []projfs.DirectoryEntry
	s.tree.AscendGreaterOrEqual(&memItem{key: prefix}, func(child *memItem) bool {
		if !strings.HasPrefix(child.key, prefix) {
			return false
		}
		if !strings.Contains(child.key[len(prefix):], "/") {
			result = append(result, child.entry())
		}
		return true
	})
	return result, nil
}

func (s *Source) GetDirectoryEntry(name string) (projfs.DirectoryEntry, error) {
	name = cleanPath(name)
	if name == "" {
		return projfs.DirectoryInfo{}, nil
	}
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	item := s.lookup(name)
	if item == nil {
		return nil, projfs.ErrNotFound
	}
	return item.entry(), nil
}

func (s *Source) StreamFileContent(
	name string, offset int64, length int,
) (io.Reader, error) {
	name = cleanPath(name)
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	item := s.lookup(name)
	if item == nil || item.dir {
		return nil, projfs.ErrNotFound
	}
	if !projfs.InRange(offset, length, item.info.Size) {
		return nil, projfs.ErrOutOfRange
	}
	if item.data == nil {
		return io.LimitReader(zeroReader{}, int64(length)), nil
	}
	return bytes.NewReader(item.data[offset : offset+int64(length)]), nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

var (
	_ projfs.Source                     = (*Source)(nil)
	_ projfs.BehaviourGetDirectoryEntry = (*Source)(nil)
)
