// Package regsource projects a registry key as a read only
// tree, which is only available on Windows.
//
// Subkeys are directories and named values are files holding
// the raw bytes of the value, in the encoding the registry
// stores them: a REG_SZ is UTF-16 with its terminator, a
// REG_DWORD is four little endian bytes.
//
// The default value of a key has no name and is left out, so
// is a value whose name is also the name of a subkey or cannot
// be a file name. The registry compares names like the host
// does, so paths in any case resolve.
package regsource
