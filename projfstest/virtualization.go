package projfstest

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/go-projfs/go-projfs"
)

// Entry is a directory entry written by the projection.
type Entry struct {
	Name string
	Info projfs.FileBasicInfo
}

// Placeholder is the placeholder written by the projection for
// a path, in the name the projection chose.
type Placeholder struct {
	Path string
	Info projfs.FileBasicInfo
}

// Virtualization is a running virtualization of the Engine,
// which acts as the host of its root.
//
// Paths are relative to the root and slash separated; they are
// handed to the projection in the backslash form of the host.
type Virtualization struct {
	engine    *Engine
	root      string
	callbacks projfs.Callbacks
	options   projfs.StartOptions
	vctx      projfs.VirtualizationContext

	// gate is held shared by the callbacks in flight, and
	// exclusively by stop.
	gate     sync.RWMutex
	stopped  bool
	inflight atomic.Int32
	commands atomic.Int32

	mtx          sync.Mutex
	placeholders map[string]Placeholder
	streams      map[projfs.GUID]*dataStream
	nextID       uint32
}

// Root is the root path the virtualization was started for.
func (v *Virtualization) Root() string {
	return v.root
}

// Options are the options the virtualization was started with.
func (v *Virtualization) Options() projfs.StartOptions {
	return v.options
}

// InFlight is the number of callbacks currently running.
func (v *Virtualization) InFlight() int {
	return int(v.inflight.Load())
}

func (v *Virtualization) enter() error {
	v.gate.RLock()
	if v.stopped {
		v.gate.RUnlock()
		return ErrStopped
	}
	v.inflight.Add(1)
	return nil
}

func (v *Virtualization) exit() {
	v.inflight.Add(-1)
	v.gate.RUnlock()
}

func (v *Virtualization) stop() {
	v.gate.Lock()
	defer v.gate.Unlock()
	v.stopped = true
}

func (v *Virtualization) newGUID() projfs.GUID {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.nextID++
	return projfs.GUID{Data1: v.nextID, Data2: 0x5052, Data3: 0x4a46}
}

func hostPath(path string) string {
	return strings.ReplaceAll(strings.Trim(path, "/"), "/", `\`)
}

func foldPath(path string) string {
	return strings.ToUpper(strings.Trim(
		strings.ReplaceAll(path, `\`, "/"), "/"))
}

func (v *Virtualization) callbackData(path string) *projfs.CallbackData {
	return &projfs.CallbackData{
		VirtualizationContext:          v.vctx,
		CommandID:                      v.commands.Add(1),
		FilePath:                       hostPath(path),
		TriggeringProcessID:            4242,
		TriggeringProcessImageFileName: `C:\Windows\explorer.exe`,
	}
}

func status(result projfs.HResult) error {
	if result.Failed() {
		return result
	}
	return nil
}

// Enumeration is a directory enumeration driven one request
// at a time.
type Enumeration struct {
	v    *Virtualization
	id   projfs.GUID
	path string
}

// StartEnumeration starts enumerating the directory, with a
// newly generated enumeration id.
func (v *Virtualization) StartEnumeration(path string) (*Enumeration, error) {
	return v.StartEnumerationWithID(path, v.newGUID())
}

// StartEnumerationWithID starts enumerating the directory with
// the enumeration id specified.
func (v *Virtualization) StartEnumerationWithID(
	path string, id projfs.GUID,
) (*Enumeration, error) {
	if err := v.enter(); err != nil {
		return nil, err
	}
	defer v.exit()
	if err := status(v.callbacks.StartDirectoryEnumeration(
		v.callbackData(path), id)); err != nil {
		return nil, err
	}
	return &Enumeration{v: v, id: id, path: path}, nil
}

// ID is the enumeration id.
func (en *Enumeration) ID() projfs.GUID {
	return en.id
}

// Next requests the entries fitting a buffer of the capacity,
// an empty result ends the enumeration.
func (en *Enumeration) Next(
	capacity int, flags projfs.CallbackDataFlags, searchExpression string,
) ([]Entry, error) {
	v := en.v
	if err := v.enter(); err != nil {
		return nil, err
	}
	defer v.exit()
	handle := v.engine.newDirEntryBuffer(capacity)
	data := v.callbackData(en.path)
	data.Flags = flags
	result := v.callbacks.GetDirectoryEnumeration(
		data, en.id, searchExpression, handle)
	entries := v.engine.takeDirEntryBuffer(handle)
	if err := status(result); err != nil {
		return nil, err
	}
	return entries, nil
}

// End ends the enumeration.
func (en *Enumeration) End() error {
	v := en.v
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()
	return status(v.callbacks.EndDirectoryEnumeration(
		v.callbackData(en.path), en.id))
}

// ReadDir lists the directory like the host does: one
// enumeration, requested until it is drained.
func (v *Virtualization) ReadDir(path string) ([]Entry, error) {
	return v.ReadDirPattern(path, "")
}

// ReadDirPattern lists the directory entries matching the
// search expression.
func (v *Virtualization) ReadDirPattern(
	path, searchExpression string,
) ([]Entry, error) {
	en, err := v.StartEnumeration(path)
	if err != nil {
		return nil, err
	}
	var result []Entry
	for {
		entries, err := en.Next(
			v.engine.entriesPerBuffer(), 0, searchExpression)
		if err != nil {
			_ = en.End()
			return nil, err
		}
		if len(entries) == 0 {
			break
		}
		result = append(result, entries...)
	}
	if err := en.End(); err != nil {
		return nil, err
	}
	return result, nil
}

func (v *Virtualization) writePlaceholder(path string, info projfs.FileBasicInfo) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.placeholders[foldPath(path)] = Placeholder{
		Path: strings.ReplaceAll(path, `\`, "/"),
		Info: info,
	}
}

// Placeholder returns the placeholder cached for the path.
func (v *Virtualization) Placeholder(path string) (Placeholder, bool) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	placeholder, ok := v.placeholders[foldPath(path)]
	return placeholder, ok
}

// Stat resolves the path like the host does when it is first
// opened: every component not cached yet is requested from the
// projection as a placeholder.
func (v *Virtualization) Stat(path string) (Placeholder, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return Placeholder{Info: projfs.FileBasicInfo{
			IsDirectory:    true,
			FileAttributes: projfs.FILE_ATTRIBUTE_DIRECTORY,
		}}, nil
	}
	components := strings.Split(path, "/")
	var placeholder Placeholder
	for index := range components {
		current := strings.Join(components[:index+1], "/")
		cached, ok := v.Placeholder(current)
		if !ok {
			if err := v.requestPlaceholder(current); err != nil {
				return Placeholder{}, err
			}
			if cached, ok = v.Placeholder(current); !ok {
				return Placeholder{}, errors.Errorf(
					"no placeholder written for %q", current)
			}
		}
		if index < len(components)-1 && !cached.Info.IsDirectory {
			return Placeholder{}, projfs.HResultFromWin32(
				projfs.ERROR_PATH_NOT_FOUND)
		}
		placeholder = cached
	}
	return placeholder, nil
}

func (v *Virtualization) requestPlaceholder(path string) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()
	return status(v.callbacks.GetPlaceholderInfo(v.callbackData(path)))
}

// QueryFileName asks the projection whether the path exists.
func (v *Virtualization) QueryFileName(path string) error {
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()
	return status(v.callbacks.QueryFileName(v.callbackData(path)))
}

// ReadFile resolves the file and hydrates its whole content.
func (v *Virtualization) ReadFile(path string) ([]byte, error) {
	placeholder, err := v.Stat(path)
	if err != nil {
		return nil, err
	}
	if placeholder.Info.IsDirectory {
		return nil, projfs.HResultFromWin32(projfs.ERROR_ACCESS_DENIED)
	}
	return v.ReadRange(path, 0, uint32(placeholder.Info.FileSize))
}

type dataStream struct {
	offset uint64
	data   []byte
	next   uint64
	writes int
}

// ReadRange requests the byte range of the file, checking that
// the projection writes it completely, in order and once.
func (v *Virtualization) ReadRange(
	path string, byteOffset uint64, length uint32,
) ([]byte, error) {
	if err := v.enter(); err != nil {
		return nil, err
	}
	defer v.exit()
	id := v.newGUID()
	stream := &dataStream{
		offset: byteOffset,
		data:   make([]byte, length),
		next:   byteOffset,
	}
	v.mtx.Lock()
	v.streams[id] = stream
	v.mtx.Unlock()
	defer func() {
		v.mtx.Lock()
		delete(v.streams, id)
		v.mtx.Unlock()
	}()

	data := v.callbackData(path)
	data.DataStreamID = id
	if err := status(v.callbacks.GetFileData(
		data, byteOffset, length)); err != nil {
		return nil, err
	}
	v.mtx.Lock()
	defer v.mtx.Unlock()
	if stream.next != byteOffset+uint64(length) {
		return nil, errors.Errorf(
			"incomplete data: %d of %d bytes written",
			stream.next-byteOffset, length)
	}
	return stream.data, nil
}

func (v *Virtualization) writeData(
	id projfs.GUID, buffer []byte, byteOffset uint64,
) error {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	stream := v.streams[id]
	if stream == nil {
		return projfs.E_INVALIDARG
	}
	end := byteOffset + uint64(len(buffer))
	if byteOffset != stream.next ||
		end > stream.offset+uint64(len(stream.data)) {
		return projfs.E_INVALIDARG
	}
	copy(stream.data[byteOffset-stream.offset:], buffer)
	stream.next = end
	stream.writes++
	return nil
}

// Event is a notification reported to the projection.
type Event struct {
	Kind         projfs.NotificationKind
	Path         string
	IsDirectory  bool
	Destination  string
	FileModified bool
}

// Notify reports the event to the projection, returning the
// error the projection answered. Events which are not selected
// by the notification mask are dropped, like the host does.
func (v *Virtualization) Notify(event Event) error {
	if !v.subscribed(event.Kind) {
		return nil
	}
	if err := v.enter(); err != nil {
		return err
	}
	defer v.exit()
	data := v.callbackData(event.Path)
	data.FileID = v.newGUID()
	return status(v.callbacks.Notification(
		data, event.IsDirectory, event.Kind,
		hostPath(event.Destination),
		&projfs.NotificationParameters{IsFileModified: event.FileModified},
	))
}

func (v *Virtualization) subscribed(kind projfs.NotificationKind) bool {
	for _, mapping := range v.options.NotificationMappings {
		if mapping.Mask&projfs.NotifySuppressNotifications != 0 {
			continue
		}
		if mapping.Mask&projfs.NotifyTypes(kind) != 0 {
			return true
		}
	}
	return false
}
