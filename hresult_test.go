package projfs

import (
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestHResultFromWin32(t *testing.T) {
	assert := Assert{assert.New(t)}
	assert.Equal(HResult(0x80070002), HResultFromWin32(ERROR_FILE_NOT_FOUND))
	assert.Equal(E_ACCESSDENIED, HResultFromWin32(ERROR_ACCESS_DENIED))
	assert.Equal(E_OUTOFMEMORY, HResultFromWin32(ERROR_OUTOFMEMORY))
	assert.Equal(E_INVALIDARG, HResultFromWin32(ERROR_INVALID_PARAMETER))
	assert.Equal(S_OK, HResultFromWin32(0))

	code, ok := HResultFromWin32(ERROR_INSUFFICIENT_BUFFER).Win32()
	assert.True(ok)
	assert.Equal(uint32(ERROR_INSUFFICIENT_BUFFER), code)
	_, ok = E_FAIL.Win32()
	assert.False(ok)
	_, ok = S_OK.Win32()
	assert.False(ok)

	assert.True(E_FAIL.Failed())
	assert.False(S_OK.Failed())
	assert.Equal("HRESULT 0x80070002: file not found",
		HResultFromWin32(ERROR_FILE_NOT_FOUND).Error())
	assert.Equal("HRESULT 0x8007FFFF", HResultFromWin32(0xFFFF).Error())
}

func TestHResultIs(t *testing.T) {
	assert := Assert{assert.New(t)}
	assert.ErrorIs(HResultFromWin32(ERROR_FILE_NOT_FOUND), os.ErrNotExist)
	assert.ErrorIs(HResultFromWin32(ERROR_PATH_NOT_FOUND), os.ErrNotExist)
	assert.ErrorIs(E_ACCESSDENIED, os.ErrPermission)
	assert.ErrorIs(HResultFromWin32(ERROR_ALREADY_EXISTS), os.ErrExist)
	assert.NotErrorIs(E_FAIL, os.ErrNotExist)
	assert.NotErrorIs(HResultFromWin32(ERROR_HANDLE_EOF), os.ErrNotExist)
	assert.ErrorIs(errors.Wrap(E_ACCESSDENIED, "open"), os.ErrPermission)
}

func TestConvertHResult(t *testing.T) {
	assert := Assert{assert.New(t)}
	fallback := hresultIOIncomplete
	for _, c := range []struct {
		err    error
		result HResult
	}{
		{nil, S_OK},
		{E_INVALIDARG, E_INVALIDARG},
		{errors.Wrap(HResultFromWin32(ERROR_DIRECTORY), "list"),
			HResultFromWin32(ERROR_DIRECTORY)},
		{ErrNotFound, HResultFromWin32(ERROR_FILE_NOT_FOUND)},
		{errors.Wrap(ErrNotFound, "lookup"), HResultFromWin32(ERROR_FILE_NOT_FOUND)},
		{&os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist},
			HResultFromWin32(ERROR_FILE_NOT_FOUND)},
		{ErrOutOfRange, HResultFromWin32(ERROR_HANDLE_EOF)},
		{io.EOF, HResultFromWin32(ERROR_HANDLE_EOF)},
		{os.ErrPermission, HResultFromWin32(ERROR_ACCESS_DENIED)},
		{os.ErrExist, HResultFromWin32(ERROR_ALREADY_EXISTS)},
		{os.ErrInvalid, HResultFromWin32(ERROR_INVALID_PARAMETER)},
		{errors.New("unknown"), fallback},
	} {
		assert.Equal(c.result, convertHResult(c.err, fallback), "%v", c.err)
	}
	assert.Equal(E_FAIL, convertHResult(errors.New("unknown"), E_FAIL))
}

func TestConvertErrno(t *testing.T) {
	assert := Assert{assert.New(t)}
	result := convertHResult(
		&os.PathError{Op: "read", Path: "x", Err: syscall.ENOENT},
		hresultIOIncomplete)
	assert.Equal(HResultFromWin32(ERROR_FILE_NOT_FOUND), result)
}
