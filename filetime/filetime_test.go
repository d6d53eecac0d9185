package filetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type Assert struct {
	*assert.Assertions
}

func TestTimestamp(t *testing.T) {
	assert := Assert{assert.New(t)}

	assert.Equal(int64(0), Timestamp(time.Time{}))
	assert.Equal(int64(epochDifference), Timestamp(time.Unix(0, 0)))
	assert.Equal(int64(133485408000000000),
		Timestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	// Precision below the tick is truncated.
	assert.Equal(int64(epochDifference+1), Timestamp(time.Unix(0, 199)))
}

func TestTimeFromRaw(t *testing.T) {
	assert := Assert{assert.New(t)}

	assert.True(TimeFromRaw(0).IsZero())

	first := TimeFromRaw(1).UTC()
	assert.Equal(1601, first.Year())
	assert.Equal(time.January, first.Month())
	assert.Equal(100, first.Nanosecond())

	assert.True(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).
		Equal(TimeFromRaw(133485408000000000)))
}

func TestRoundTrip(t *testing.T) {
	assert := Assert{assert.New(t)}

	for _, raw := range []int64{
		1,
		epochDifference - 1,
		epochDifference,
		133482410012464001,
		133485408000000000,
	} {
		assert.Equal(raw, Timestamp(TimeFromRaw(raw)))
	}
}
