//go:build !windows

package projfs

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"
)

func newGUID() (GUID, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return GUID{}, errors.Wrap(err, "generate instance id")
	}
	// Version 4, variant RFC 4122.
	raw[6] = (raw[6] & 0x0f) | 0x40
	raw[8] = (raw[8] & 0x3f) | 0x80
	guid := GUID{
		Data1: binary.BigEndian.Uint32(raw[0:4]),
		Data2: binary.BigEndian.Uint16(raw[4:6]),
		Data3: binary.BigEndian.Uint16(raw[6:8]),
	}
	copy(guid.Data4[:], raw[8:])
	return guid, nil
}
