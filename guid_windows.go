//go:build windows

package projfs

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

func newGUID() (GUID, error) {
	guid, err := windows.GenerateGUID()
	if err != nil {
		return GUID{}, errors.Wrap(err, "generate instance id")
	}
	return GUID(guid), nil
}
