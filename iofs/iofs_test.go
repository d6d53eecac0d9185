package iofs

import (
	"io"
	"io/fs"
	"math"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/go-projfs/go-projfs"
)

type Assert struct {
	*assert.Assertions
}

var modTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"My_File.txt":      {Data: []byte("Hello World!\n"), Mode: 0o644, ModTime: modTime},
		"Test-A/nested.md": {Data: []byte("# nested"), Mode: 0o444, ModTime: modTime},
		"Test-B":           {Mode: fs.ModeDir | 0o755, ModTime: modTime},
		"locked":           {Mode: fs.ModeDir | 0o555, ModTime: modTime},
		"locked/frozen":    {Data: []byte("ice"), Mode: 0o444, ModTime: modTime},
	}
}

func byName(entries []projfs.DirectoryEntry) map[string]projfs.FileBasicInfo {
	result := make(map[string]projfs.FileBasicInfo)
	for _, entry := range entries {
		result[entry.EntryName()] = entry.BasicInfo()
	}
	return result
}

func TestListDirectory(t *testing.T) {
	assert := Assert{assert.New(t)}
	source := New(testFS())

	entries, err := source.ListDirectory("")
	assert.NoError(err)
	infos := byName(entries)
	assert.Len(infos, 4)

	file := infos["My_File.txt"]
	assert.False(file.IsDirectory)
	assert.Equal(int64(13), file.FileSize)
	assert.Equal(uint32(projfs.FILE_ATTRIBUTE_NORMAL), file.FileAttributes)
	assert.Equal(file.CreationTime, file.LastWriteTime)
	assert.NotZero(file.CreationTime)

	dir := infos["Test-A"]
	assert.True(dir.IsDirectory)
	assert.Equal(uint32(projfs.FILE_ATTRIBUTE_DIRECTORY), dir.FileAttributes)

	nested, err := source.ListDirectory("Test-A")
	assert.NoError(err)
	assert.Equal(uint32(projfs.FILE_ATTRIBUTE_READONLY),
		byName(nested)["nested.md"].FileAttributes)

	_, err = source.ListDirectory("Missing")
	assert.ErrorIs(err, fs.ErrNotExist)
	_, err = source.ListDirectory("My_File.txt")
	assert.ErrorIs(err, projfs.ErrNotFound)
	_, err = source.ListDirectory("Test-A/../Test-B")
	assert.ErrorIs(err, projfs.ErrNotFound)
}

func TestReadOnlyTransMode(t *testing.T) {
	assert := Assert{assert.New(t)}
	readOnly := func(mode AttribReadOnlyTransMode, dir, name string) bool {
		source, err := NewOptions(testFS(), WithAttribReadOnlyTransMode(mode))
		assert.NoError(err)
		entries, err := source.ListDirectory(dir)
		assert.NoError(err)
		return byName(entries)[name].FileAttributes&
			projfs.FILE_ATTRIBUTE_READONLY != 0
	}
	assert.False(readOnly(AttribReadOnlyWindows, "", "My_File.txt"))
	assert.True(readOnly(AttribReadOnlyWindows, "Test-A", "nested.md"))
	assert.False(readOnly(AttribReadOnlyBypass, "Test-A", "nested.md"))
	assert.True(readOnly(AttribReadOnlyAlways, "", "My_File.txt"))
	assert.True(readOnly(AttribReadOnlyPOSIX, "locked", "frozen"))
	assert.True(readOnly(AttribReadOnlyWindows|AttribReadOnlyHonorSys, "locked", "frozen"))

	// The synthesized directories of MapFS are not writable.
	assert.True(readOnly(AttribReadOnlyPOSIX, "Test-A", "nested.md"))

	source, err := NewOptions(testFS(), WithAttribReadOnlyTransMode(AttribReadOnlyPOSIX))
	assert.NoError(err)
	entry, err := source.GetDirectoryEntry("locked/frozen")
	assert.NoError(err)
	assert.NotZero(entry.BasicInfo().FileAttributes & projfs.FILE_ATTRIBUTE_READONLY)

	_, err = NewOptions(testFS(), WithAttribReadOnlyTransMode(8))
	assert.Error(err)
	_, err = NewOptions(nil)
	assert.Error(err)
}

func TestGetDirectoryEntry(t *testing.T) {
	assert := Assert{assert.New(t)}
	source := New(testFS())

	entry, err := source.GetDirectoryEntry("Test-A/nested.md")
	assert.NoError(err)
	assert.Equal("nested.md", entry.EntryName())
	assert.Equal(int64(8), entry.BasicInfo().FileSize)

	entry, err = source.GetDirectoryEntry("Test-B")
	assert.NoError(err)
	assert.True(entry.BasicInfo().IsDirectory)

	entry, err = source.GetDirectoryEntry("")
	assert.NoError(err)
	assert.True(entry.BasicInfo().IsDirectory)

	_, err = source.GetDirectoryEntry("sub-dir-x/file_existing.txt")
	assert.ErrorIs(err, fs.ErrNotExist)
}

// plainFS hides everything but fs.File from the opened files.
type plainFS struct {
	fs.FS
}

func (p plainFS) Open(name string) (fs.File, error) {
	file, err := p.FS.Open(name)
	if err != nil {
		return nil, err
	}
	return struct{ fs.File }{file}, nil
}

func readRange(
	assert Assert, source *Source, name string, offset int64, length int,
) (string, error) {
	reader, err := source.StreamFileContent(name, offset, length)
	if err != nil {
		return "", err
	}
	defer func() {
		assert.NoError(reader.(io.Closer).Close())
	}()
	data, err := io.ReadAll(reader)
	return string(data), err
}

func TestStreamFileContent(t *testing.T) {
	assert := Assert{assert.New(t)}
	for _, source := range []*Source{New(testFS()), New(plainFS{testFS()})} {
		data, err := readRange(assert, source, "My_File.txt", 0, 13)
		assert.NoError(err)
		assert.Equal("Hello World!\n", data)

		data, err = readRange(assert, source, "My_File.txt", 6, 5)
		assert.NoError(err)
		assert.Equal("World", data)

		_, err = readRange(assert, source, "My_File.txt", 5, 100)
		assert.ErrorIs(err, projfs.ErrOutOfRange)
		_, err = readRange(assert, source, "My_File.txt", math.MaxInt64-4, 100)
		assert.ErrorIs(err, projfs.ErrOutOfRange)

		_, err = readRange(assert, source, "file_not_existing.txt", 0, 1)
		assert.ErrorIs(err, fs.ErrNotExist)

		_, err = readRange(assert, source, "Test-B", 0, 0)
		assert.ErrorIs(err, fs.ErrInvalid)
	}
}
