package projfs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type Assert struct {
	*assert.Assertions
}

func TestCompareFileNames(t *testing.T) {
	assert := Assert{assert.New(t)}
	assert.Zero(CompareFileNames("my_file.TXT", "My_File.txt"))
	assert.Negative(CompareFileNames("My_File.txt", "Test-A"))
	assert.Negative(CompareFileNames("Test-A", "test-b"))
	assert.Positive(CompareFileNames("Test-B", "TEST-A"))
	assert.Negative(CompareFileNames("Test", "Test-A"))
	assert.Positive(CompareFileNames("Test-A", "Test"))
	assert.Zero(CompareFileNames("", ""))

	// Ordinal after upper casing: '_' sorts after the letters.
	assert.Positive(CompareFileNames("a_", "aZ"))
	assert.Zero(CompareFileNames("émile", "ÉMILE"))
}

func TestMatchFileName(t *testing.T) {
	assert := Assert{assert.New(t)}
	for _, c := range []struct {
		name, pattern string
		match         bool
	}{
		{"My_File.txt", "", true},
		{"My_File.txt", "*", true},
		{"My_File.txt", "*.TXT", true},
		{"My_File.txt", "my_*", true},
		{"My_File.txt", "*.bin", false},
		{"Test-A", "Test-?", true},
		{"Test-AB", "Test-?", false},
		{"Test-A", "*-*", true},
		{"Test-A", "Test-A", true},
		{"Test-A", "Test-B", false},
		{"archive.tar.gz", "<.gz", true},
		{"archive", "<", true},
		{"archive.tar.gz", "<.tar", false},
		{"readme", "readme\"", true},
		{"readme.", "readme\"", true},
		{"readme.md", "readme\"*", true},
		{"ab", "ab>>", true},
		{"ab.c", "ab>>.c", true},
		{"abc.c", "a>.c", false},
		{"", "?", false},
		{"abc", "a**c", true},
	} {
		assert.Equal(c.match, MatchFileName(c.name, c.pattern),
			"%q against %q", c.name, c.pattern)
	}
}

func TestEncodeFileName(t *testing.T) {
	assert := Assert{assert.New(t)}
	assert.Equal([]uint16{0}, encodeFileName(""))
	assert.Equal([]uint16{'a', 'b', 0}, encodeFileName("ab"))
	assert.Equal([]uint16{'a', 0}, encodeFileName("a\x00b"))

	encoded := encodeFileName("g\U0001F600.txt")
	assert.Len(encoded, 8)
	assert.Equal("g\U0001F600.txt", DecodeFileName(encoded))
	assert.Equal(uint16(0), encoded[len(encoded)-1])

	assert.Equal("ok", DecodeFileName([]uint16{'o', 'k', 0, 'x'}))
	assert.Equal("ok", DecodeFileName([]uint16{'o', 'k'}))
	assert.Equal(string(replacementChar), DecodeFileName(
		encodeFileName(string([]byte{0xff}))))
}

func TestFileNameCache(t *testing.T) {
	assert := Assert{assert.New(t)}
	cache := newFileNameCache()
	first := cache.getOrCache("Test-A")
	for index := 0; index < 100; index++ {
		cache.getOrCache(string(rune('a' + index%26)))
	}
	again := cache.getOrCache("Test-A")
	assert.Same(&first[0], &again[0])
	assert.Equal("Test-A", DecodeFileName(again))
}

func TestSourcePath(t *testing.T) {
	assert := Assert{assert.New(t)}
	assert.Equal("", sourcePath(""))
	assert.Equal("a/b/c.txt", sourcePath(`a\b\c.txt`))
	assert.Equal("a", sourcePath(`\a\`))

	parent, name := splitSourcePath("a/b/c.txt")
	assert.Equal("a/b", parent)
	assert.Equal("c.txt", name)
	parent, name = splitSourcePath("c.txt")
	assert.Equal("", parent)
	assert.Equal("c.txt", name)

	assert.Equal(`a\b\C.TXT`, replaceHostName(`a\b\c.txt`, "C.TXT"))
	assert.Equal("C.TXT", replaceHostName("c.txt", "C.TXT"))
}

func TestInRange(t *testing.T) {
	assert := Assert{assert.New(t)}
	assert.True(InRange(0, 0, 0))
	assert.True(InRange(0, 13, 13))
	assert.True(InRange(13, 0, 13))
	assert.True(InRange(6, 5, 13))
	assert.False(InRange(6, 8, 13))
	assert.False(InRange(14, 0, 13))
	assert.False(InRange(-1, 1, 13))
	assert.False(InRange(0, -1, 13))
	assert.False(InRange(math.MaxInt64-4, 100, 13))
	assert.False(InRange(math.MaxInt64-4, 100, math.MaxInt64))
	assert.True(InRange(math.MaxInt64-4, 4, math.MaxInt64))
}
