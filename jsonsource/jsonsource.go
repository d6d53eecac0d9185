// Package jsonsource projects a JSON document as a read only
// tree.
//
// Objects and arrays are directories, named by their keys and
// indices. Every other value is a file holding its raw JSON
// text, so a string keeps its quotes.
package jsonsource

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/go-projfs/go-projfs"
)

// Source is the JSON document source.
type Source struct {
	root    gjson.Result
	modTime time.Time
}

// New projects the document, which must be an object or an
// array.
func New(document []byte) (*Source, error) {
	if !gjson.ValidBytes(document) {
		return nil, errors.New("invalid JSON document")
	}
	root := gjson.ParseBytes(document)
	if !root.IsObject() && !root.IsArray() {
		return nil, errors.Errorf(
			"JSON document is a %s, not an object or array", root.Type)
	}
	return &Source{root: root}, nil
}

// Open projects the document stored in the file.
func Open(path string) (*Source, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read document %q", path)
	}
	source, err := New(document)
	if err != nil {
		return nil, errors.Wrapf(err, "open document %q", path)
	}
	if stat, err := os.Stat(path); err == nil {
		source.modTime = stat.ModTime()
	}
	return source, nil
}

func isDirectory(value gjson.Result) bool {
	return value.IsObject() || value.IsArray()
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// forEachChild visits the children of the directory value with
// their names, skipping the keys which are no file names and
// the repeated ones.
func forEachChild(value gjson.Result, visit func(string, gjson.Result) bool) {
	index := 0
	var seen map[string]bool
	value.ForEach(func(key, child gjson.Result) bool {
		var name string
		if value.IsArray() {
			name = strconv.Itoa(index)
			index++
		} else {
			name = key.String()
			if !validName(name) {
				return true
			}
			if seen == nil {
				seen = make(map[string]bool)
			}
			folded := strings.ToUpper(name)
			if seen[folded] {
				return true
			}
			seen[folded] = true
		}
		return visit(name, child)
	})
}

func child(value gjson.Result, name string) (string, gjson.Result, bool) {
	if value.IsObject() && validName(name) {
		if exact := value.Get(gjson.Escape(name)); exact.Exists() {
			return name, exact, true
		}
	}
	var (
		foundName string
		found     gjson.Result
		ok        bool
	)
	forEachChild(value, func(childName string, childValue gjson.Result) bool {
		if strings.EqualFold(childName, name) {
			foundName, found, ok = childName, childValue, true
			return false
		}
		return true
	})
	return foundName, found, ok
}

func (s *Source) resolve(path string) (string, gjson.Result, error) {
	current := s.root
	name := ""
	if path == "" {
		return name, current, nil
	}
	for _, component := range strings.Split(path, "/") {
		if !isDirectory(current) {
			return "", gjson.Result{}, errors.Wrapf(
				projfs.ErrNotFound, "resolve %q", path)
		}
		var ok bool
		name, current, ok = child(current, component)
		if !ok {
			return "", gjson.Result{}, errors.Wrapf(
				projfs.ErrNotFound, "resolve %q", path)
		}
	}
	return name, current, nil
}

func (s *Source) entry(name string, value gjson.Result) projfs.DirectoryEntry {
	if isDirectory(value) {
		return projfs.DirectoryInfo{
			Name:           name,
			CreationTime:   s.modTime,
			LastAccessTime: s.modTime,
			LastWriteTime:  s.modTime,
		}
	}
	return projfs.FileInfo{
		Name:           name,
		Size:           int64(len(value.Raw)),
		Attributes:     projfs.FILE_ATTRIBUTE_READONLY,
		CreationTime:   s.modTime,
		LastAccessTime: s.modTime,
		LastWriteTime:  s.modTime,
	}
}

func (s *Source) ListDirectory(path string) ([]projfs.DirectoryEntry, error) {
	_, value, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if !isDirectory(value) {
		return nil, errors.Wrapf(projfs.ErrNotFound, "list %q", path)
	}
	var result []projfs.DirectoryEntry
	forEachChild(value, func(name string, child gjson.Result) bool {
		result = append(result, s.entry(name, child))
		return true
	})
	return result, nil
}

func (s *Source) GetDirectoryEntry(path string) (projfs.DirectoryEntry, error) {
	name, value, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return s.entry(name, value), nil
}

func (s *Source) StreamFileContent(
	path string, offset int64, length int,
) (io.Reader, error) {
	_, value, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if isDirectory(value) {
		return nil, errors.Wrapf(projfs.ErrNotFound, "read %q", path)
	}
	raw := value.Raw
	if !projfs.InRange(offset, length, int64(len(raw))) {
		return nil, errors.Wrapf(projfs.ErrOutOfRange,
			"read %q at %d+%d of %d", path, offset, length, len(raw))
	}
	return strings.NewReader(raw[offset : offset+int64(length)]), nil
}

var (
	_ projfs.Source                     = (*Source)(nil)
	_ projfs.BehaviourGetDirectoryEntry = (*Source)(nil)
)
