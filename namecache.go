package projfs

// fileNameCache stores the NUL terminated UTF-16 form of the
// names handed to the engine.
//
// The cache is insert only: a name is encoded once, and the
// slices returned remain valid and unchanged for the lifetime
// of the cache, so they can be held by the engine in between.
type fileNameCache struct {
	names map[string][]uint16
}

func newFileNameCache() *fileNameCache {
	return &fileNameCache{names: make(map[string][]uint16)}
}

func (c *fileNameCache) getOrCache(name string) []uint16 {
	if encoded, ok := c.names[name]; ok {
		return encoded
	}
	encoded := encodeFileName(name)
	c.names[name] = encoded
	return encoded
}
