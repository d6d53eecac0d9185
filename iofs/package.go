// Package iofs aims at providing a simple but working
// pass-through projection of any io/fs.FS.
//
// Directories of the file system are listed with fs.ReadDir,
// single entries are looked up with fs.Stat, and the content
// of files is streamed through io.ReaderAt whenever the opened
// file supports it, falling back to seeking or skipping.
//
// The projection is read only: nothing written by the host
// under the virtualization root goes back to the file system.
// Wrapping os.DirFS makes a directory tree appear under the
// root, with the times and attributes of the original when
// the platform reports them.
package iofs
