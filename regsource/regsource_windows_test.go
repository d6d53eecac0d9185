package regsource

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/windows/registry"

	"github.com/go-projfs/go-projfs"
)

type Assert struct {
	*assert.Assertions
}

// createTree creates a scratch key below HKCU\Software, which
// is removed when the test ends.
func createTree(t *testing.T) string {
	suffix := make([]byte, 6)
	_, _ = rand.Read(suffix)
	path := `Software\go-projfs-test-` + hex.EncodeToString(suffix)
	root, _, err := registry.CreateKey(registry.CURRENT_USER, path, registry.ALL_ACCESS)
	if err != nil {
		t.Skipf("cannot create registry key: %v", err)
	}
	t.Cleanup(func() {
		_ = registry.DeleteKey(registry.CURRENT_USER, path+`\Test-A\Nested`)
		_ = registry.DeleteKey(registry.CURRENT_USER, path+`\Test-A`)
		_ = registry.DeleteKey(registry.CURRENT_USER, path+`\Test-B`)
		_ = registry.DeleteKey(registry.CURRENT_USER, path)
	})
	defer func() { _ = root.Close() }()

	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(root.SetStringValue("", "default"))
	must(root.SetBinaryValue("Blob", []byte("Hello World!\n")))
	must(root.SetDWordValue("Count", 0x01020304))
	must(root.SetStringValue("Test-B", "shadowed by the subkey"))
	testA, _, err := registry.CreateKey(root, `Test-A`, registry.ALL_ACCESS)
	must(err)
	must(testA.SetStringValue("Name", "projfs"))
	nested, _, err := registry.CreateKey(testA, `Nested`, registry.ALL_ACCESS)
	must(err)
	_ = nested.Close()
	_ = testA.Close()
	testB, _, err := registry.CreateKey(root, `Test-B`, registry.ALL_ACCESS)
	must(err)
	_ = testB.Close()
	return path
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
	source := New(registry.CURRENT_USER, createTree(t))

	root, err := source.ListDirectory("")
	assert.NoError(err)
	assert.ElementsMatch([]string{"Test-A", "Test-B", "Blob", "Count"}, names(root))
	for _, entry := range root {
		switch entry.EntryName() {
		case "Test-A", "Test-B":
			assert.True(entry.BasicInfo().IsDirectory)
		case "Count":
			assert.Equal(int64(4), entry.BasicInfo().FileSize)
		}
	}

	nested, err := source.ListDirectory("test-a")
	assert.NoError(err)
	assert.ElementsMatch([]string{"Nested", "Name"}, names(nested))

	_, err = source.ListDirectory("Missing")
	assert.ErrorIs(err, projfs.ErrNotFound)
}

func TestGetDirectoryEntry(t *testing.T) {
	assert := Assert{assert.New(t)}
	source := New(registry.CURRENT_USER, createTree(t))

	entry, err := source.GetDirectoryEntry("TEST-A/nested")
	assert.NoError(err)
	assert.Equal("Nested", entry.EntryName())
	assert.True(entry.BasicInfo().IsDirectory)

	entry, err = source.GetDirectoryEntry("Test-A/NAME")
	assert.NoError(err)
	assert.Equal("Name", entry.EntryName())
	assert.Equal(int64(len("projfs\x00")*2), entry.BasicInfo().FileSize)

	entry, err = source.GetDirectoryEntry("Test-B")
	assert.NoError(err)
	assert.True(entry.BasicInfo().IsDirectory)

	_, err = source.GetDirectoryEntry("Missing")
	assert.ErrorIs(err, projfs.ErrNotFound)
}

func TestStreamFileContent(t *testing.T) {
	assert := Assert{assert.New(t)}
	source := New(registry.CURRENT_USER, createTree(t))

	reader, err := source.StreamFileContent("Blob", 6, 5)
	assert.NoError(err)
	content, err := io.ReadAll(reader)
	assert.NoError(err)
	assert.Equal("World", string(content))

	reader, err = source.StreamFileContent("count", 0, 4)
	assert.NoError(err)
	content, err = io.ReadAll(reader)
	assert.NoError(err)
	assert.Equal([]byte{4, 3, 2, 1}, content)

	_, err = source.StreamFileContent("Blob", 10, 5)
	assert.ErrorIs(err, projfs.ErrOutOfRange)
	_, err = source.StreamFileContent("Blob", math.MaxInt64-4, 100)
	assert.ErrorIs(err, projfs.ErrOutOfRange)
	_, err = source.StreamFileContent("Missing", 0, 1)
	assert.ErrorIs(err, projfs.ErrNotFound)
	_, err = source.StreamFileContent("Missing/Value", 0, 1)
	assert.ErrorIs(err, projfs.ErrNotFound)
}
