package projfs

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// HResult is the native HRESULT status code. Every callback of the
// bridge answers the host with one of them, and every native call
// of a Library reports its failure as one.
type HResult uint32

// Win32 error codes used by the bridge.
const (
	ERROR_FILE_NOT_FOUND       = 2
	ERROR_PATH_NOT_FOUND       = 3
	ERROR_ACCESS_DENIED        = 5
	ERROR_NOT_ENOUGH_MEMORY    = 8
	ERROR_OUTOFMEMORY          = 14
	ERROR_HANDLE_EOF           = 38
	ERROR_NOT_SUPPORTED        = 50
	ERROR_INVALID_PARAMETER    = 87
	ERROR_INSUFFICIENT_BUFFER  = 122
	ERROR_MOD_NOT_FOUND        = 126
	ERROR_PROC_NOT_FOUND       = 127
	ERROR_ALREADY_EXISTS       = 183
	ERROR_DIRECTORY            = 267
	ERROR_IO_INCOMPLETE        = 996
	ERROR_DEVICE_NOT_CONNECTED = 1167
	ERROR_INTERNAL_ERROR       = 1359
)

const facilityWin32 = 7

const (
	S_OK           = HResult(0x00000000)
	E_FAIL         = HResult(0x80004005)
	E_ACCESSDENIED = HResult(0x80070005)
	E_OUTOFMEMORY  = HResult(0x8007000E)
	E_INVALIDARG   = HResult(0x80070057)
)

// HResultFromWin32 is the HRESULT_FROM_WIN32 macro.
func HResultFromWin32(code uint32) HResult {
	if int32(code) <= 0 {
		return HResult(code)
	}
	return HResult((code & 0x0000FFFF) | (facilityWin32 << 16) | 0x80000000)
}

// Failed is the FAILED macro.
func (h HResult) Failed() bool {
	return int32(h) < 0
}

// Win32 extracts the Win32 error code wrapped by HRESULT_FROM_WIN32.
func (h HResult) Win32() (uint32, bool) {
	if !h.Failed() || (uint32(h)>>16)&0x1FFF != facilityWin32 {
		return 0, false
	}
	return uint32(h) & 0x0000FFFF, true
}

var hresultMessages = map[HResult]string{
	S_OK:           "success",
	E_FAIL:         "unspecified failure",
	E_ACCESSDENIED: "access denied",
	E_OUTOFMEMORY:  "out of memory",
	E_INVALIDARG:   "invalid argument",

	HResultFromWin32(ERROR_FILE_NOT_FOUND):       "file not found",
	HResultFromWin32(ERROR_PATH_NOT_FOUND):       "path not found",
	HResultFromWin32(ERROR_HANDLE_EOF):           "reached the end of the file",
	HResultFromWin32(ERROR_NOT_SUPPORTED):        "request not supported",
	HResultFromWin32(ERROR_INSUFFICIENT_BUFFER):  "insufficient buffer",
	HResultFromWin32(ERROR_MOD_NOT_FOUND):        "module not found",
	HResultFromWin32(ERROR_PROC_NOT_FOUND):       "procedure not found",
	HResultFromWin32(ERROR_ALREADY_EXISTS):       "already exists",
	HResultFromWin32(ERROR_DIRECTORY):            "invalid directory name",
	HResultFromWin32(ERROR_IO_INCOMPLETE):        "incomplete i/o",
	HResultFromWin32(ERROR_DEVICE_NOT_CONNECTED): "device not connected",
	HResultFromWin32(ERROR_INTERNAL_ERROR):       "internal error",
}

func (h HResult) Error() string {
	if msg, ok := hresultMessages[h]; ok {
		return fmt.Sprintf("HRESULT 0x%08X: %s", uint32(h), msg)
	}
	return fmt.Sprintf("HRESULT 0x%08X", uint32(h))
}

// Is allows errors.Is(hr, os.ErrNotExist) and alike.
func (h HResult) Is(target error) bool {
	code, ok := h.Win32()
	if !ok {
		return h == E_ACCESSDENIED && target == os.ErrPermission
	}
	switch target {
	case os.ErrNotExist:
		return code == ERROR_FILE_NOT_FOUND || code == ERROR_PATH_NOT_FOUND
	case os.ErrPermission:
		return code == ERROR_ACCESS_DENIED
	case os.ErrExist:
		return code == ERROR_ALREADY_EXISTS
	}
	return false
}

// hresultNoRef is returned when the instance context handed by the
// host is not registered anymore.
var hresultNoRef = HResultFromWin32(ERROR_DEVICE_NOT_CONNECTED)

// hresultIOIncomplete is the generic fallback of data requests.
var hresultIOIncomplete = HResultFromWin32(ERROR_IO_INCOMPLETE)

var syscallWin32Map = map[syscall.Errno]uint32{
	syscall.ENOENT:  ERROR_FILE_NOT_FOUND,
	syscall.EEXIST:  ERROR_ALREADY_EXISTS,
	syscall.EPERM:   ERROR_ACCESS_DENIED,
	syscall.EACCES:  ERROR_ACCESS_DENIED,
	syscall.ENOTDIR: ERROR_DIRECTORY,
	syscall.EINVAL:  ERROR_INVALID_PARAMETER,
	syscall.ENOMEM:  ERROR_NOT_ENOUGH_MEMORY,
}

// convertHResult maps an error into the nearest HRESULT, falling
// back to the specified code when nothing in the chain is known.
func convertHResult(err error, fallback HResult) HResult {
	if err == nil {
		return S_OK
	}
	var status HResult
	if errors.As(err, &status) {
		return status
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if code, ok := nativeErrno(errno); ok {
			return HResultFromWin32(code)
		}
		if code, ok := syscallWin32Map[errno]; ok {
			return HResultFromWin32(code)
		}
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return HResultFromWin32(ERROR_FILE_NOT_FOUND)
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return HResultFromWin32(ERROR_HANDLE_EOF)
	case errors.Is(err, os.ErrPermission):
		return HResultFromWin32(ERROR_ACCESS_DENIED)
	case errors.Is(err, os.ErrExist):
		return HResultFromWin32(ERROR_ALREADY_EXISTS)
	case errors.Is(err, os.ErrInvalid):
		return HResultFromWin32(ERROR_INVALID_PARAMETER)
	}
	return fallback
}
