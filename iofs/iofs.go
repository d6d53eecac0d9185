package iofs

import (
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/go-projfs/go-projfs"
)

// AttribReadOnlyTransMode controls how iofs translate
// the permission bits of a file into the
// `FILE_ATTRIBUTE_READONLY` attribute.
//
// Directories never carry the read-only attribute.
//
// The default value is `AttribReadOnlyWindows`.
type AttribReadOnlyTransMode uint64

const (
	// AttribReadOnlyWindows make iofs set the read-only
	// attribute when `fs.FileInfo.Mode()` has no writable
	// bit set for the owner, which is the way go os package
	// translate the attribute on Windows platform.
	AttribReadOnlyWindows AttribReadOnlyTransMode = 0

	// AttribReadOnlyBypass make iofs clear the read-only
	// attribute indefinitely.
	AttribReadOnlyBypass AttribReadOnlyTransMode = 1

	// AttribReadOnlyAlways make iofs set the read-only
	// attribute indefinitely.
	AttribReadOnlyAlways AttribReadOnlyTransMode = 2

	// AttribReadOnlyPOSIX make iofs set the read-only
	// attribute only if both the file and its parent
	// directory have no writable bit set for the owner.
	AttribReadOnlyPOSIX AttribReadOnlyTransMode = 3

	AttribReadOnlyAllStyleBits = AttribReadOnlyTransMode(0) |
		AttribReadOnlyWindows |
		AttribReadOnlyBypass |
		AttribReadOnlyAlways |
		AttribReadOnlyPOSIX

	// AttribReadOnlyHonorSys make iofs honor the attributes
	// reported by `fs.FileInfo.Sys()` on Windows, falling back
	// to the style bits elsewhere.
	AttribReadOnlyHonorSys AttribReadOnlyTransMode = 4

	AttribReadOnlyAllBits = AttribReadOnlyTransMode(0) |
		AttribReadOnlyAllStyleBits |
		AttribReadOnlyHonorSys
)

// Source projects the file system.
type Source struct {
	fsys              fs.FS
	readOnlyTransMode AttribReadOnlyTransMode
}

// fsPath converts the source path into a path of fs.FS.
func fsPath(name string) (string, error) {
	if name == "" {
		return ".", nil
	}
	if !fs.ValidPath(name) {
		return "", errors.Wrapf(projfs.ErrNotFound, "invalid path %q", name)
	}
	return name, nil
}

func (s *Source) readOnlyBit(selfStat, parentStat fs.FileInfo) uint32 {
	if (s.readOnlyTransMode & AttribReadOnlyHonorSys) != 0 {
		if attributes, ok := sysAttributes(selfStat); ok {
			return attributes & projfs.FILE_ATTRIBUTE_READONLY
		}
	}
	mode := selfStat.Mode()
	switch s.readOnlyTransMode & AttribReadOnlyAllStyleBits {
	case AttribReadOnlyBypass:
		return 0
	case AttribReadOnlyAlways:
		return projfs.FILE_ATTRIBUTE_READONLY
	case AttribReadOnlyPOSIX:
		selfWritable := (uint32(mode.Perm()) & 0200) != 0
		parentMode := fs.FileMode(0)
		if parentStat != nil {
			parentMode = parentStat.Mode()
		}
		parentWritable := (uint32(parentMode.Perm()) & 0200) != 0
		if selfWritable || parentWritable {
			return 0
		}
		return projfs.FILE_ATTRIBUTE_READONLY
	default:
		if (uint32(mode.Perm()) & 0200) != 0 {
			return 0
		}
		return projfs.FILE_ATTRIBUTE_READONLY
	}
}

func (s *Source) attributes(selfStat, parentStat fs.FileInfo) uint32 {
	var attributes uint32
	if mode := selfStat.Mode(); mode.IsRegular() {
		attributes |= s.readOnlyBit(selfStat, parentStat)
	}
	if attributes&projfs.FILE_ATTRIBUTE_READONLY == 0 {
		if sys, ok := sysAttributes(selfStat); ok {
			attributes |= sys & (projfs.FILE_ATTRIBUTE_HIDDEN |
				projfs.FILE_ATTRIBUTE_SYSTEM |
				projfs.FILE_ATTRIBUTE_ARCHIVE)
		}
	}
	if attributes == 0 && !selfStat.IsDir() {
		attributes = projfs.FILE_ATTRIBUTE_NORMAL
	}
	return attributes
}

// entry converts the stat into the entry named name, the stat of
// the parent is only needed by AttribReadOnlyPOSIX.
func (s *Source) entry(
	name string, selfStat, parentStat fs.FileInfo,
) projfs.DirectoryEntry {
	creationTime := selfStat.ModTime()
	lastAccessTime, lastWriteTime := creationTime, creationTime

	// We can extract more data from it if it is the attribute
	// data from windows, which is the one from golang's
	// standard library.
	if creation, access, write, ok := sysTimes(selfStat); ok {
		creationTime, lastAccessTime, lastWriteTime = creation, access, write
	}
	attributes := s.attributes(selfStat, parentStat)
	if selfStat.IsDir() {
		return projfs.DirectoryInfo{
			Name:           name,
			Attributes:     attributes,
			CreationTime:   creationTime,
			LastAccessTime: lastAccessTime,
			LastWriteTime:  lastWriteTime,
		}
	}
	return projfs.FileInfo{
		Name:           name,
		Size:           selfStat.Size(),
		Attributes:     attributes,
		CreationTime:   creationTime,
		LastAccessTime: lastAccessTime,
		LastWriteTime:  lastWriteTime,
	}
}

func (s *Source) needParentStat() bool {
	return s.readOnlyTransMode&AttribReadOnlyAllStyleBits == AttribReadOnlyPOSIX
}

func (s *Source) ListDirectory(name string) ([]projfs.DirectoryEntry, error) {
	dir, err := fsPath(name)
	if err != nil {
		return nil, err
	}
	dirEntries, err := fs.ReadDir(s.fsys, dir)
	if err != nil {
		if stat, statErr := fs.Stat(s.fsys, dir); statErr == nil && !stat.IsDir() {
			return nil, errors.Wrapf(projfs.ErrNotFound,
				"list %q: not a directory", name)
		}
		return nil, errors.Wrapf(err, "list %q", name)
	}
	var parentStat fs.FileInfo
	if s.needParentStat() {
		if parentStat, err = fs.Stat(s.fsys, dir); err != nil {
			return nil, errors.Wrapf(err, "stat %q", name)
		}
	}
	result := make([]projfs.DirectoryEntry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		stat, err := dirEntry.Info()
		if err != nil {
			// Removed in between the listing and the stat.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, errors.Wrapf(err,
				"stat %q", path.Join(dir, dirEntry.Name()))
		}
		if !stat.IsDir() && !stat.Mode().IsRegular() {
			continue
		}
		result = append(result, s.entry(dirEntry.Name(), stat, parentStat))
	}
	return result, nil
}

func (s *Source) GetDirectoryEntry(name string) (projfs.DirectoryEntry, error) {
	target, err := fsPath(name)
	if err != nil {
		return nil, err
	}
	stat, err := fs.Stat(s.fsys, target)
	if err != nil {
		return nil, err
	}
	if target == "." {
		return projfs.DirectoryInfo{}, nil
	}
	var parentStat fs.FileInfo
	if s.needParentStat() {
		if parentStat, err = fs.Stat(s.fsys, path.Dir(target)); err != nil {
			return nil, err
		}
	}
	return s.entry(path.Base(target), stat, parentStat), nil
}

type fileReader struct {
	io.Reader
	file fs.File
}

func (r *fileReader) Close() error {
	return r.file.Close()
}

func (s *Source) StreamFileContent(
	name string, offset int64, length int,
) (io.Reader, error) {
	target, err := fsPath(name)
	if err != nil {
		return nil, err
	}
	file, err := s.fsys.Open(target)
	if err != nil {
		return nil, err
	}
	reader, err := openRange(file, name, offset, int64(length))
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &fileReader{Reader: reader, file: file}, nil
}

// openRange positions the reader on the range of the opened file.
func openRange(file fs.File, name string, offset, length int64) (io.Reader, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %q", name)
	}
	if stat.IsDir() {
		return nil, errors.Wrapf(fs.ErrInvalid, "stream %q: is a directory", name)
	}
	if offset < 0 || length < 0 || offset > stat.Size() || length > stat.Size()-offset {
		return nil, errors.Wrapf(projfs.ErrOutOfRange,
			"stream %q at %d+%d of %d", name, offset, length, stat.Size())
	}
	if readerAt, ok := file.(io.ReaderAt); ok {
		return io.NewSectionReader(readerAt, offset, length), nil
	}
	if seeker, ok := file.(io.Seeker); ok {
		if _, err := seeker.Seek(offset, io.SeekStart); err != nil {
			return nil, errors.Wrapf(err, "seek %q to %d", name, offset)
		}
		return io.LimitReader(file, length), nil
	}
	if _, err := io.CopyN(io.Discard, file, offset); err != nil {
		return nil, errors.Wrapf(err, "skip %q to %d", name, offset)
	}
	return io.LimitReader(file, length), nil
}

type newOption struct {
	attribReadOnlyTransMode AttribReadOnlyTransMode
}

// NewOption is the optional option used to
// initialize the iofs.
type NewOption func(*newOption) error

func WithAttribReadOnlyTransMode(mode AttribReadOnlyTransMode) NewOption {
	return func(option *newOption) (rerr error) {
		defer func() {
			if rerr == nil {
				return
			}
			rerr = errors.Wrapf(
				rerr, "apply WithAttribReadOnlyTransMode(%d)", uint64(mode),
			)
		}()
		if (mode & AttribReadOnlyAllBits) != mode {
			return errors.New("invalid attribute bits")
		}
		option.attribReadOnlyTransMode = mode
		return nil
	}
}

// NewOptions create the source with the provided
// `fs.FS` and a variadic array of options.
func NewOptions(fsys fs.FS, opts ...NewOption) (*Source, error) {
	if fsys == nil {
		return nil, errors.New("invalid nil file system parameter")
	}
	var option newOption
	for _, opt := range opts {
		if err := opt(&option); err != nil {
			return nil, err
		}
	}
	return &Source{
		fsys:              fsys,
		readOnlyTransMode: option.attribReadOnlyTransMode,
	}, nil
}

// New create the source with the provided `fs.FS`
// and default settings, which is guaranteed to
// success for a non-nil file system.
func New(fsys fs.FS) *Source {
	result, err := NewOptions(fsys)
	if err != nil {
		panic(err)
	}
	return result
}

var (
	_ projfs.Source                     = (*Source)(nil)
	_ projfs.BehaviourGetDirectoryEntry = (*Source)(nil)
)

// zeroTime is what sysTimes reports for unknown times.
var zeroTime time.Time
