// Package filetime converts between time.Time and the 100
// nanosecond FILETIME ticks counted by the host since the
// first of January 1601.
//
// The zero time.Time and the zero FILETIME are the same
// unknown instant, which the host reads as "not provided".
package filetime

import (
	"time"
)

const (
	// epochDifference is the number of ticks between the
	// FILETIME epoch and the unix epoch.
	epochDifference = 116444736000000000

	ticksPerSecond = 10000000
	nsecPerTick    = 100
)

// Timestamp converts the time into the FILETIME ticks.
func Timestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()*ticksPerSecond +
		int64(t.Nanosecond()/nsecPerTick) +
		epochDifference
}

// TimeFromRaw converts the FILETIME ticks into a time.
//
// The precision of a tick is 100ns, and the time is
// returned in the local location like time.Unix does.
func TimeFromRaw(t int64) time.Time {
	if t == 0 {
		return time.Time{}
	}
	ticks := t - epochDifference
	sec, rem := ticks/ticksPerSecond, ticks%ticksPerSecond
	if rem < 0 {
		rem += ticksPerSecond
		sec--
	}
	return time.Unix(sec, rem*nsecPerTick)
}
