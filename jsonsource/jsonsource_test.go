package jsonsource

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-projfs/go-projfs"
)

type Assert struct {
	*assert.Assertions
}

const document = `{
	"name": "projfs",
	"version": 3,
	"enabled": true,
	"Nested": {"empty": {}, "list": [1, "two", null, {"k": "v"}]},
	"a.b*c": "escaped",
	"bad/key": 1,
	"name": "repeated"
}`

func names(entries []projfs.DirectoryEntry) []string {
	var result []string
	for _, entry := range entries {
		result = append(result, entry.EntryName())
	}
	return result
}

func TestNew(t *testing.T) {
	assert := Assert{assert.New(t)}
	_, err := New([]byte(`{"unterminated": `))
	assert.Error(err)
	_, err = New([]byte(`"scalar"`))
	assert.Error(err)
	_, err = New([]byte(`[]`))
	assert.NoError(err)
}

func TestListDirectory(t *testing.T) {
	assert := Assert{assert.New(t)}
	source, err := New([]byte(document))
	assert.NoError(err)

	root, err := source.ListDirectory("")
	assert.NoError(err)
	assert.Equal([]string{"name", "version", "enabled", "Nested", "a.b*c"},
		names(root))
	assert.True(root[3].BasicInfo().IsDirectory)
	assert.Equal(int64(len(`"projfs"`)), root[0].BasicInfo().FileSize)

	list, err := source.ListDirectory("nested/LIST")
	assert.NoError(err)
	assert.Equal([]string{"0", "1", "2", "3"}, names(list))
	assert.True(list[3].BasicInfo().IsDirectory)

	empty, err := source.ListDirectory("Nested/empty")
	assert.NoError(err)
	assert.Empty(empty)

	_, err = source.ListDirectory("version")
	assert.ErrorIs(err, projfs.ErrNotFound)
	_, err = source.ListDirectory("Missing")
	assert.ErrorIs(err, projfs.ErrNotFound)
}

func TestGetDirectoryEntry(t *testing.T) {
	assert := Assert{assert.New(t)}
	source, err := New([]byte(document))
	assert.NoError(err)

	entry, err := source.GetDirectoryEntry("A.B*C")
	assert.NoError(err)
	assert.Equal("a.b*c", entry.EntryName())
	assert.Equal(uint32(projfs.FILE_ATTRIBUTE_READONLY),
		entry.BasicInfo().FileAttributes)

	entry, err = source.GetDirectoryEntry("Nested/list/3/k")
	assert.NoError(err)
	assert.Equal("k", entry.EntryName())
	assert.Equal(int64(3), entry.BasicInfo().FileSize)

	_, err = source.GetDirectoryEntry("Nested/list/4")
	assert.ErrorIs(err, projfs.ErrNotFound)
	_, err = source.GetDirectoryEntry("version/inner")
	assert.ErrorIs(err, projfs.ErrNotFound)
	_, err = source.GetDirectoryEntry("bad")
	assert.ErrorIs(err, projfs.ErrNotFound)
}

func TestStreamFileContent(t *testing.T) {
	assert := Assert{assert.New(t)}
	source, err := New([]byte(document))
	assert.NoError(err)

	read := func(path string, offset int64, length int) (string, error) {
		reader, err := source.StreamFileContent(path, offset, length)
		if err != nil {
			return "", err
		}
		content, err := io.ReadAll(reader)
		return string(content), err
	}

	content, err := read("name", 0, 8)
	assert.NoError(err)
	assert.Equal(`"projfs"`, content)
	content, err = read("Nested/list/2", 0, 4)
	assert.NoError(err)
	assert.Equal("null", content)
	content, err = read("enabled", 1, 3)
	assert.NoError(err)
	assert.Equal("rue", content)

	_, err = read("version", 0, 2)
	assert.ErrorIs(err, projfs.ErrOutOfRange)
	_, err = read("name", math.MaxInt64-4, 100)
	assert.ErrorIs(err, projfs.ErrOutOfRange)
	_, err = read("Nested", 0, 1)
	assert.ErrorIs(err, projfs.ErrNotFound)
}

func TestOpen(t *testing.T) {
	assert := Assert{assert.New(t)}
	path := filepath.Join(t.TempDir(), "document.json")
	assert.NoError(os.WriteFile(path, []byte(`{"file": 1}`), 0o600))

	source, err := Open(path)
	assert.NoError(err)
	entry, err := source.GetDirectoryEntry("file")
	assert.NoError(err)
	assert.NotZero(entry.BasicInfo().LastWriteTime)

	_, err = Open(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(err, os.ErrNotExist)
}
