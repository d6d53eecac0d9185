// Package boltsource projects a bolt database as a read only
// tree: buckets are directories, keys holding a value are files
// whose content is the value.
//
// Keys which cannot be file names, like those holding a slash
// or invalid UTF-8, are left out of the tree.
package boltsource

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/go-projfs/go-projfs"
)

// Source is the bolt database source.
type Source struct {
	db      *bolt.DB
	owned   bool
	modTime time.Time
}

// New projects the opened database, which stays owned by the
// caller and is not closed by the source.
func New(db *bolt.DB) *Source {
	return &Source{db: db}
}

// Open opens the database file read only, the database is
// closed with the source.
func Open(path string) (*Source, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:  time.Second,
		ReadOnly: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open database %q", path)
	}
	source := &Source{db: db, owned: true}
	if stat, err := os.Stat(path); err == nil {
		source.modTime = stat.ModTime()
	}
	return source, nil
}

// Close closes the database if it was opened by Open.
func (s *Source) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func validName(key []byte) bool {
	if len(key) == 0 || !utf8.Valid(key) {
		return false
	}
	name := string(key)
	if name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// node is a resolved path, the root is a directory without
// a bucket.
type node struct {
	name   string
	dir    bool
	bucket *bolt.Bucket
	value  []byte
}

func cursor(tx *bolt.Tx, parent *bolt.Bucket) *bolt.Cursor {
	if parent == nil {
		return tx.Cursor()
	}
	return parent.Cursor()
}

func childBucket(tx *bolt.Tx, parent *bolt.Bucket, key []byte) *bolt.Bucket {
	if parent == nil {
		return tx.Bucket(key)
	}
	return parent.Bucket(key)
}

// find looks the name up in the bucket, exactly first and then
// ignoring the case like the host does.
func find(c *bolt.Cursor, name string) ([]byte, []byte, bool) {
	if key, value := c.Seek([]byte(name)); key != nil && string(key) == name {
		return key, value, true
	}
	for key, value := c.First(); key != nil; key, value = c.Next() {
		if validName(key) && strings.EqualFold(string(key), name) {
			return key, value, true
		}
	}
	return nil, nil, false
}

func (s *Source) resolve(tx *bolt.Tx, name string) (*node, error) {
	current := &node{dir: true}
	if name == "" {
		return current, nil
	}
	for _, component := range strings.Split(name, "/") {
		if !current.dir {
			return nil, errors.Wrapf(projfs.ErrNotFound,
				"%q is not a bucket", current.name)
		}
		key, value, ok := find(cursor(tx, current.bucket), component)
		if !ok {
			return nil, errors.Wrapf(projfs.ErrNotFound, "lookup %q", name)
		}
		parent := current.bucket
		current = &node{name: string(key), value: value}
		if value == nil {
			current.bucket = childBucket(tx, parent, key)
			current.dir = current.bucket != nil
		}
	}
	return current, nil
}

func (s *Source) entry(name string, dir bool, size int) projfs.DirectoryEntry {
	if dir {
		return projfs.DirectoryInfo{
			Name:           name,
			CreationTime:   s.modTime,
			LastAccessTime: s.modTime,
			LastWriteTime:  s.modTime,
		}
	}
	return projfs.FileInfo{
		Name:           name,
		Size:           int64(size),
		Attributes:     projfs.FILE_ATTRIBUTE_READONLY,
		CreationTime:   s.modTime,
		LastAccessTime: s.modTime,
		LastWriteTime:  s.modTime,
	}
}

func (s *Source) ListDirectory(name string) ([]projfs.DirectoryEntry, error) {
	var result []projfs.DirectoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		dir, err := s.resolve(tx, name)
		if err != nil {
			return err
		}
		if !dir.dir {
			return errors.Wrapf(projfs.ErrNotFound, "%q is not a bucket", name)
		}
		c := cursor(tx, dir.bucket)
		for key, value := c.First(); key != nil; key, value = c.Next() {
			if !validName(key) {
				continue
			}
			isBucket := value == nil && childBucket(tx, dir.bucket, key) != nil
			result = append(result, s.entry(string(key), isBucket, len(value)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Source) GetDirectoryEntry(name string) (projfs.DirectoryEntry, error) {
	var result projfs.DirectoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		target, err := s.resolve(tx, name)
		if err != nil {
			return err
		}
		if name == "" {
			result = projfs.DirectoryInfo{}
			return nil
		}
		result = s.entry(target.name, target.dir, len(target.value))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Source) StreamFileContent(
	name string, offset int64, length int,
) (io.Reader, error) {
	var content []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		target, err := s.resolve(tx, name)
		if err != nil {
			return err
		}
		if target.dir {
			return errors.Wrapf(projfs.ErrNotFound, "%q is a bucket", name)
		}
		if !projfs.InRange(offset, length, int64(len(target.value))) {
			return errors.Wrapf(projfs.ErrOutOfRange,
				"read %q at %d+%d of %d", name, offset, length, len(target.value))
		}
		// The value is only valid inside of the transaction.
		content = bytes.Clone(target.value[offset : offset+int64(length)])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(content), nil
}

var (
	_ projfs.Source                     = (*Source)(nil)
	_ projfs.BehaviourGetDirectoryEntry = (*Source)(nil)
	_ io.Closer                         = (*Source)(nil)
)
