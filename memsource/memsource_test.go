package memsource

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-projfs/go-projfs"
)

type Assert struct {
	*assert.Assertions
}

func names(entries []projfs.DirectoryEntry) []string {
	var result []string
	for _, entry := range entries {
		result = append(result, entry.EntryName())
	}
	return result
}

func TestListDirectory(t *testing.T) {
	assert := Assert{assert.New(t)}
	source := New()
	source.AddFile("Test-A/Nested/deep.txt", projfs.FileInfo{}, []byte("deep"))
	source.AddDirectory("Test-B", projfs.DirectoryInfo{})
	source.AddFile("My_File.txt", projfs.FileInfo{Size: 667}, nil)
	source.AddFile("Test-A.txt", projfs.FileInfo{}, []byte("a"))

	root, err := source.ListDirectory("")
	assert.NoError(err)
	assert.ElementsMatch(
		[]string{"Test-A", "Test-B", "My_File.txt", "Test-A.txt"},
		names(root))

	nested, err := source.ListDirectory(`test-a\`)
	assert.NoError(err)
	assert.Equal([]string{"Nested"}, names(nested))
	assert.True(nested[0].BasicInfo().IsDirectory)

	empty, err := source.ListDirectory("Test-B")
	assert.NoError(err)
	assert.Empty(empty)

	_, err = source.ListDirectory("Missing")
	assert.ErrorIs(err, projfs.ErrNotFound)
	_, err = source.ListDirectory("My_File.txt")
	assert.ErrorIs(err, projfs.ErrNotFound)
}

func TestGetDirectoryEntry(t *testing.T) {
	assert := Assert{assert.New(t)}
	source := New()
	source.AddFile("Dir/File.bin", projfs.FileInfo{}, []byte{1, 2, 3})

	entry, err := source.GetDirectoryEntry("DIR/file.BIN")
	assert.NoError(err)
	assert.Equal("File.bin", entry.EntryName())
	assert.Equal(int64(3), entry.BasicInfo().FileSize)

	entry, err = source.GetDirectoryEntry("")
	assert.NoError(err)
	assert.True(entry.BasicInfo().IsDirectory)

	_, err = source.GetDirectoryEntry("Dir/Other")
	assert.ErrorIs(err, projfs.ErrNotFound)
}

func TestStreamFileContent(t *testing.T) {
	assert := Assert{assert.New(t)}
	source := New()
	source.AddFile("hello.txt", projfs.FileInfo{}, []byte("hello world"))
	source.AddFile("zeros.bin", projfs.FileInfo{Size: 8}, nil)

	reader, err := source.StreamFileContent("hello.txt", 6, 5)
	assert.NoError(err)
	data, err := io.ReadAll(reader)
	assert.NoError(err)
	assert.Equal("world", string(data))

	reader, err = source.StreamFileContent("zeros.bin", 2, 6)
	assert.NoError(err)
	data, err = io.ReadAll(reader)
	assert.NoError(err)
	assert.Equal(make([]byte, 6), data)

	_, err = source.StreamFileContent("hello.txt", 6, 6)
	assert.ErrorIs(err, projfs.ErrOutOfRange)
	_, err = source.StreamFileContent("hello.txt", math.MaxInt64-4, 100)
	assert.ErrorIs(err, projfs.ErrOutOfRange)
	_, err = source.StreamFileContent("zeros.bin", math.MaxInt64-4, 100)
	assert.ErrorIs(err, projfs.ErrOutOfRange)
	_, err = source.StreamFileContent("missing.txt", 0, 1)
	assert.ErrorIs(err, projfs.ErrNotFound)
}

func TestRemove(t *testing.T) {
	assert := Assert{assert.New(t)}
	source := New()
	source.AddFile("a/b/c.txt", projfs.FileInfo{}, []byte("c"))
	source.AddFile("a.txt", projfs.FileInfo{}, []byte("a"))

	assert.True(source.Remove("A"))
	assert.False(source.Remove("a"))
	_, err := source.GetDirectoryEntry("a/b/c.txt")
	assert.ErrorIs(err, projfs.ErrNotFound)

	root, err := source.ListDirectory("")
	assert.NoError(err)
	assert.Equal([]string{"a.txt"}, names(root))
}
