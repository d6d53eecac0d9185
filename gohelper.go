package projfs

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

// This file stores the helpers of the engine which are
// implemented by go, so that name handling can be run
// and tested without the engine.

const replacementChar = '\uFFFD' // Unicode replacement character

// encodeFileName encodes the name into NUL terminated UTF-16.
//
// A name can never contain NUL, which truncates it.
func encodeFileName(name string) []uint16 {
	if index := strings.IndexByte(name, 0); index >= 0 {
		name = name[:index]
	}
	var utf16Len int
	for _, r := range name {
		if utf16.RuneLen(r) == 2 {
			utf16Len += 2
		} else {
			utf16Len++
		}
	}
	result := make([]uint16, 0, utf16Len+1)
	for _, r := range name {
		switch utf16.RuneLen(r) {
		case 1:
			result = append(result, uint16(r))
		case 2:
			r1, r2 := utf16.EncodeRune(r)
			result = append(result, uint16(r1), uint16(r2))
		default:
			result = append(result, uint16(replacementChar))
		}
	}
	return append(result, 0)
}

// DecodeFileName decodes the UTF-16 name handed out by the
// engine, up to the first NUL.
func DecodeFileName(name []uint16) string {
	for index, c := range name {
		if c == 0 {
			name = name[:index]
			break
		}
	}
	return string(utf16.Decode(name))
}

func upcaseRunes(name string) []rune {
	runes := []rune(name)
	for index, r := range runes {
		runes[index] = unicode.ToUpper(r)
	}
	return runes
}

// CompareFileNames orders the names like PrjFileNameCompare: an
// ordinal comparison of the upper cased names.
func CompareFileNames(name1, name2 string) int {
	runes1, runes2 := upcaseRunes(name1), upcaseRunes(name2)
	for index := 0; index < len(runes1) && index < len(runes2); index++ {
		if runes1[index] < runes2[index] {
			return -1
		}
		if runes1[index] > runes2[index] {
			return 1
		}
	}
	switch {
	case len(runes1) < len(runes2):
		return -1
	case len(runes1) > len(runes2):
		return 1
	}
	return 0
}

const (
	dosStar = '<'
	dosQM   = '>'
	dosDot  = '"'
)

// MatchFileName checks the name against the pattern like
// PrjFileNameMatch, honouring `*`, `?` and the DOS wildcards
// `<`, `>` and `"`. The empty pattern matches every name.
func MatchFileName(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	return matchRunes(upcaseRunes(name), upcaseRunes(pattern))
}

func lastDot(name []rune) int {
	for index := len(name) - 1; index >= 0; index-- {
		if name[index] == '.' {
			return index
		}
	}
	return -1
}

func matchRunes(name, pattern []rune) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			for index := 0; index <= len(name); index++ {
				if matchRunes(name[index:], pattern) {
					return true
				}
			}
			return false
		case dosStar:
			// Matches up to and excluding the final dot, or the
			// whole name if there is none.
			limit := lastDot(name)
			if limit < 0 {
				limit = len(name)
			}
			for index := 0; index <= limit; index++ {
				if matchRunes(name[index:], pattern[1:]) {
					return true
				}
			}
			return false
		case dosQM:
			// Matches a single character, or nothing in front of
			// a dot or at the end of the name.
			if len(name) > 0 && name[0] != '.' {
				name = name[1:]
			}
			pattern = pattern[1:]
		case dosDot:
			// Matches a dot, or nothing at the end of the name.
			if len(name) > 0 {
				if name[0] != '.' {
					return false
				}
				name = name[1:]
			}
			pattern = pattern[1:]
		case '?':
			if len(name) == 0 {
				return false
			}
			name, pattern = name[1:], pattern[1:]
		default:
			if len(name) == 0 || name[0] != pattern[0] {
				return false
			}
			name, pattern = name[1:], pattern[1:]
		}
	}
	return len(name) == 0
}
