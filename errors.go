package projfs

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by sources when the requested path does
	// not exist. It matches os.ErrNotExist.
	ErrNotFound = errors.WithMessage(os.ErrNotExist, "projfs: entry not found")

	// ErrOutOfRange is returned by sources when the requested byte
	// range lies beyond the end of the file. It matches
	// io.ErrUnexpectedEOF.
	ErrOutOfRange = errors.WithMessage(io.ErrUnexpectedEOF, "projfs: range out of bounds")

	// ErrFeatureNotEnabled is returned when the optional projected
	// file system feature of the operating system is not enabled.
	ErrFeatureNotEnabled = errors.New("projfs: projected file system feature is not enabled")

	// ErrUnsupportedPlatform is returned when no native library
	// exists for the running operating system.
	ErrUnsupportedPlatform = errors.New("projfs: unsupported platform")
)

// ConfigurationError reports a virtualization root which is not an
// existing, empty directory.
type ConfigurationError struct {
	Root   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("projfs: root %q %s: %v", e.Root, e.Reason, e.Err)
	}
	return fmt.Sprintf("projfs: root %q %s", e.Root, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// EngineError reports a failure of the host engine while marking
// the root or starting the virtualization, or a failure to release
// the data source once the virtualization stopped.
type EngineError struct {
	Op  string
	Err error
}

const (
	OpMarkRoot = "mark root"
	OpStart    = "start"
	OpStop     = "stop"
)

func (e *EngineError) Error() string {
	return fmt.Sprintf("projfs: %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// LibraryError reports a native library that could be loaded but
// does not provide the expected entry points.
type LibraryError struct {
	Library string
	Proc    string
	Err     error
}

func (e *LibraryError) Error() string {
	if e.Proc == "" {
		return fmt.Sprintf("projfs: load %s: %v", e.Library, e.Err)
	}
	return fmt.Sprintf("projfs: resolve %s!%s: %v", e.Library, e.Proc, e.Err)
}

func (e *LibraryError) Unwrap() error {
	return e.Err
}
