package projfs

import (
	"slices"
)

// enumeration is the state of one directory enumeration of the
// host, from StartDirectoryEnumeration to the matching
// EndDirectoryEnumeration.
//
// The listing is captured and sorted in the order of the host
// once, the cursor only ever moves forward unless the host
// restarts the scan.
type enumeration struct {
	id      GUID
	path    string
	entries []DirectoryEntry
	names   *fileNameCache
	cursor  int

	// filter is the search expression of the scan, nil matches
	// every entry. It is captured on the first request of the
	// scan only.
	filter         []uint16
	filterCaptured bool
}

func newEnumeration(
	id GUID, path string, entries []DirectoryEntry, library Library,
) *enumeration {
	names := newFileNameCache()
	slices.SortStableFunc(entries, func(a, b DirectoryEntry) int {
		return library.FileNameCompare(
			names.getOrCache(a.EntryName()),
			names.getOrCache(b.EntryName()),
		)
	})
	return &enumeration{
		id:      id,
		path:    path,
		entries: entries,
		names:   names,
	}
}

// prepare applies the flags and the search expression of a
// GetDirectoryEnumeration request.
func (e *enumeration) prepare(restart bool, searchExpression string) {
	if restart {
		e.cursor = 0
		e.filter = nil
		e.filterCaptured = false
	}
	if e.filterCaptured {
		return
	}
	e.filterCaptured = true
	if searchExpression != "" {
		e.filter = e.names.getOrCache(searchExpression)
	}
}

// peek returns the entry under the cursor and its encoded name.
func (e *enumeration) peek() (DirectoryEntry, []uint16, bool) {
	if e.cursor >= len(e.entries) {
		return nil, nil, false
	}
	entry := e.entries[e.cursor]
	return entry, e.names.getOrCache(entry.EntryName()), true
}

func (e *enumeration) advance() {
	e.cursor++
}

func (e *enumeration) matches(library Library, name []uint16) bool {
	if e.filter == nil {
		return true
	}
	return library.FileNameMatch(name, e.filter)
}
