package projfs

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-projfs/go-projfs/log"
)

// chunkSize bounds the buffer of a single WriteFileData call.
const chunkSize = 1024 * 1024

// projectionContext serves the callbacks of one virtualization
// instance out of its Source.
//
// Every callback holds the mutex for its whole duration, so
// that the Source and the enumerations are always accessed
// by one callback at a time.
type projectionContext struct {
	mtx      sync.Mutex
	library  Library
	logger   log.Log
	source   Source
	getEntry BehaviourGetDirectoryEntry
	notify   BehaviourNotification
	closed   bool

	enumerations map[GUID]*enumeration
}

func newProjectionContext(
	library Library, source Source, logger log.Log,
) *projectionContext {
	c := &projectionContext{
		library:      library,
		logger:       log.OrNoLog(logger),
		source:       source,
		enumerations: make(map[GUID]*enumeration),
	}
	if getEntry, ok := source.(BehaviourGetDirectoryEntry); ok {
		c.getEntry = getEntry
	}
	if notify, ok := source.(BehaviourNotification); ok {
		c.notify = notify
	}
	return c
}

func returnResult(result HResult) HResult {
	return result
}

// call records the callback at TopicCall, the returned function
// must be applied to the result of the callback.
func (c *projectionContext) call(
	name string, data *CallbackData, args log.M,
) func(HResult) HResult {
	if !c.logger.Enabled(log.TopicCall) {
		return returnResult
	}
	if args == nil {
		args = make(log.M)
	}
	args["data"] = DebugCallbackData{data}
	cookie := c.logger.Call(name, args)
	return func(result HResult) HResult {
		c.logger.Return(name, cookie, log.M{"result": result})
		return result
	}
}

// release drops the enumerations and closes the Source if it
// is an io.Closer. It must only be called once the engine will
// not deliver any more callbacks.
func (c *projectionContext) release() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if len(c.enumerations) > 0 {
		c.logger.Logf(log.TopicError,
			"%d directory enumerations were not ended",
			len(c.enumerations))
	}
	c.enumerations = nil
	if closer, ok := c.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *projectionContext) StartDirectoryEnumeration(
	data *CallbackData, enumerationID GUID,
) HResult {
	done := c.call("StartDirectoryEnumeration", data, log.M{
		"enumerationID": enumerationID,
	})
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return done(c.startDirectoryEnumeration(data, enumerationID))
}

func (c *projectionContext) startDirectoryEnumeration(
	data *CallbackData, enumerationID GUID,
) HResult {
	if _, ok := c.enumerations[enumerationID]; ok {
		c.logger.Logf(log.TopicError,
			"directory enumeration %s started twice, "+
				"replacing the previous one", enumerationID)
		delete(c.enumerations, enumerationID)
	}
	path := sourcePath(data.FilePath)
	entries, err := c.source.ListDirectory(path)
	if err != nil {
		c.logger.Logf(log.TopicError,
			"list directory %q: %v", path, err)
		return convertHResult(err, hresultIOIncomplete)
	}
	c.enumerations[enumerationID] = newEnumeration(
		enumerationID, path, entries, c.library)
	return S_OK
}

func (c *projectionContext) EndDirectoryEnumeration(
	data *CallbackData, enumerationID GUID,
) HResult {
	done := c.call("EndDirectoryEnumeration", data, log.M{
		"enumerationID": enumerationID,
	})
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if _, ok := c.enumerations[enumerationID]; !ok {
		c.logger.Logf(log.TopicError,
			"end of unknown directory enumeration %s", enumerationID)
		return done(S_OK)
	}
	delete(c.enumerations, enumerationID)
	return done(S_OK)
}

func (c *projectionContext) GetDirectoryEnumeration(
	data *CallbackData, enumerationID GUID,
	searchExpression string, buffer DirEntryBufferHandle,
) HResult {
	done := c.call("GetDirectoryEnumeration", data, log.M{
		"enumerationID":    enumerationID,
		"searchExpression": searchExpression,
	})
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return done(c.getDirectoryEnumeration(
		data, enumerationID, searchExpression, buffer))
}

func (c *projectionContext) getDirectoryEnumeration(
	data *CallbackData, enumerationID GUID,
	searchExpression string, buffer DirEntryBufferHandle,
) HResult {
	session, ok := c.enumerations[enumerationID]
	if !ok {
		c.logger.Logf(log.TopicError,
			"request for unknown directory enumeration %s", enumerationID)
		return S_OK
	}
	session.prepare(
		data.Flags&CallbackDataFlagEnumRestartScan != 0,
		searchExpression,
	)
	singleEntry := data.Flags&CallbackDataFlagEnumReturnSingleEntry != 0
	written := 0
	for {
		entry, name, ok := session.peek()
		if !ok {
			break
		}
		if !session.matches(c.library, name) {
			session.advance()
			continue
		}
		info := entry.BasicInfo()
		if err := c.library.FillDirEntryBuffer(name, &info, buffer); err != nil {
			status := convertHResult(err, E_FAIL)
			if status != HResultFromWin32(ERROR_INSUFFICIENT_BUFFER) {
				return status
			}
			// The entry is kept under the cursor for the next
			// request, unless not even one entry fitted.
			if written == 0 {
				return status
			}
			break
		}
		session.advance()
		written++
		if singleEntry {
			break
		}
	}
	return S_OK
}

// lookupEntry finds the entry of a source path through the
// Source, or through the listing of its parent.
func (c *projectionContext) lookupEntry(path string) (DirectoryEntry, error) {
	if c.getEntry != nil {
		entry, err := c.getEntry.GetDirectoryEntry(path)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, ErrNotFound
		}
		return entry, nil
	}
	if path == "" {
		return DirectoryInfo{}, nil
	}
	parent, name := splitSourcePath(path)
	entries, err := c.source.ListDirectory(parent)
	if err != nil {
		return nil, err
	}
	names := newFileNameCache()
	target := names.getOrCache(name)
	for _, entry := range entries {
		if c.library.FileNameCompare(
			names.getOrCache(entry.EntryName()), target) == 0 {
			return entry, nil
		}
	}
	return nil, ErrNotFound
}

func (c *projectionContext) GetPlaceholderInfo(data *CallbackData) HResult {
	done := c.call("GetPlaceholderInfo", data, nil)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return done(c.getPlaceholderInfo(data))
}

func (c *projectionContext) getPlaceholderInfo(data *CallbackData) HResult {
	path := sourcePath(data.FilePath)
	entry, err := c.lookupEntry(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Logf(log.TopicError,
				"lookup entry %q: %v", path, err)
		}
		return convertHResult(err, HResultFromWin32(ERROR_FILE_NOT_FOUND))
	}
	var info PlaceholderInfo
	info.FileBasicInfo = entry.BasicInfo()
	names := newFileNameCache()
	destination := names.getOrCache(replaceHostName(data.FilePath, entry.EntryName()))
	if err := c.library.WritePlaceholderInfo(
		data.VirtualizationContext, destination, &info); err != nil {
		c.logger.Logf(log.TopicError,
			"write placeholder %q: %v", path, err)
		return convertHResult(err, E_FAIL)
	}
	return S_OK
}

func (c *projectionContext) QueryFileName(data *CallbackData) HResult {
	done := c.call("QueryFileName", data, nil)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	path := sourcePath(data.FilePath)
	if _, err := c.lookupEntry(path); err != nil {
		return done(convertHResult(err, HResultFromWin32(ERROR_FILE_NOT_FOUND)))
	}
	return done(S_OK)
}

func (c *projectionContext) GetFileData(
	data *CallbackData, byteOffset uint64, length uint32,
) HResult {
	done := c.call("GetFileData", data, log.M{
		"byteOffset": byteOffset,
		"length":     length,
	})
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return done(c.getFileData(data, byteOffset, length))
}

func (c *projectionContext) getFileData(
	data *CallbackData, byteOffset uint64, length uint32,
) HResult {
	if length == 0 {
		return S_OK
	}
	path := sourcePath(data.FilePath)
	reader, err := c.source.StreamFileContent(
		path, int64(byteOffset), int(length))
	if err != nil {
		c.logger.Logf(log.TopicError,
			"stream %q at %d+%d: %v", path, byteOffset, length, err)
		return convertHResult(err, hresultIOIncomplete)
	}
	if closer, ok := reader.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	buffer := allocateAlignedBuffer(
		c.library, data.VirtualizationContext,
		min(int(length), chunkSize))
	if buffer == nil {
		return E_OUTOFMEMORY
	}
	defer buffer.Release()

	remaining := uint64(length)
	offset := byteOffset
	for remaining > 0 {
		chunk := buffer.Bytes()[:min(remaining, uint64(len(buffer.Bytes())))]
		if _, err := io.ReadFull(reader, chunk); err != nil {
			c.logger.Logf(log.TopicError,
				"read %q at %d: %v", path, offset, err)
			return convertHResult(err, hresultIOIncomplete)
		}
		if err := c.library.WriteFileData(
			data.VirtualizationContext, data.DataStreamID,
			chunk, offset); err != nil {
			c.logger.Logf(log.TopicError,
				"write data %q at %d: %v", path, offset, err)
			return convertHResult(err, E_FAIL)
		}
		offset += uint64(len(chunk))
		remaining -= uint64(len(chunk))
	}
	return S_OK
}

func (c *projectionContext) Notification(
	data *CallbackData, isDirectory bool, kind NotificationKind,
	destinationFileName string, params *NotificationParameters,
) HResult {
	done := c.call("Notification", data, log.M{
		"isDirectory":         isDirectory,
		"kind":                kind,
		"destinationFileName": destinationFileName,
	})
	c.mtx.Lock()
	defer c.mtx.Unlock()
	notification := &Notification{
		Kind: kind,
		Target: NotificationTarget{
			FileID:                         data.FileID,
			Path:                           sourcePath(data.FilePath),
			IsDirectory:                    isDirectory,
			TriggeringProcessID:            data.TriggeringProcessID,
			TriggeringProcessImageFileName: data.TriggeringProcessImageFileName,
		},
		Destination: sourcePath(destinationFileName),
	}
	if params != nil {
		notification.FileModified = params.IsFileModified
	}
	if c.logger.Enabled(log.TopicNotification) {
		c.logger.Logf(log.TopicNotification,
			"%s %q (process %d)", kind,
			notification.Target.Path, data.TriggeringProcessID)
	}
	if c.notify == nil {
		return done(S_OK)
	}
	if c.notify.HandleNotification(notification) != Break {
		return done(S_OK)
	}
	if !kind.Cancelable() {
		c.logger.Logf(log.TopicVerdict,
			"%s %q cannot be cancelled, ignoring the break",
			kind, notification.Target.Path)
		return done(S_OK)
	}
	c.logger.Logf(log.TopicVerdict, "%s %q denied",
		kind, notification.Target.Path)
	return done(HResultFromWin32(ERROR_ACCESS_DENIED))
}

var _ Callbacks = (*projectionContext)(nil)
