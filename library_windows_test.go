//go:build windows

package projfs

import (
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestLoadLibraryWithDLL(t *testing.T) {
	assert := Assert{assert.New(t)}
	dll, err := syscall.LoadDLL(projectedFSLibName)
	if err != nil {
		t.Skipf("projected file system is not enabled: %v", err)
	}
	defer func() { _ = dll.Release() }()

	library, err := LoadLibraryWithDLL(dll)
	assert.NoError(err)
	assert.Zero(library.FileNameCompare(
		encodeFileName("Test-A"), encodeFileName("TEST-a")))
	assert.Negative(library.FileNameCompare(
		encodeFileName("My_File.txt"), encodeFileName("Test-A")))
	assert.True(library.FileNameMatch(
		encodeFileName("My_File.txt"), encodeFileName("*.TXT")))
}

func TestLoadLibraryWithDLLMissingProc(t *testing.T) {
	assert := Assert{assert.New(t)}
	dll, err := syscall.LoadDLL("kernel32.dll")
	assert.NoError(err)

	_, err = LoadLibraryWithDLL(dll)
	var libraryErr *LibraryError
	if assert.True(errors.As(err, &libraryErr)) {
		assert.Equal("PrjAllocateAlignedBuffer", libraryErr.Proc)
	}
}
