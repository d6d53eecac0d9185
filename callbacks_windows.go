//go:build windows

package projfs

import (
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// prjCallbackData is PRJ_CALLBACK_DATA.
type prjCallbackData struct {
	Size                           uint32
	Flags                          uint32
	NamespaceVirtualizationContext uintptr
	CommandId                      int32
	FileId                         GUID
	DataStreamId                   GUID
	FilePathName                   *uint16
	VersionInfo                    *PlaceholderVersionInfo
	TriggeringProcessId            uint32
	TriggeringProcessImageFileName *uint16
	InstanceContext                uintptr
}

// prjCallbacks is PRJ_CALLBACKS.
type prjCallbacks struct {
	StartDirectoryEnumerationCallback uintptr
	EndDirectoryEnumerationCallback   uintptr
	GetDirectoryEnumerationCallback   uintptr
	GetPlaceholderInfoCallback        uintptr
	GetFileDataCallback               uintptr
	QueryFileNameCallback             uintptr
	NotificationCallback              uintptr
	CancelCommandCallback             uintptr
}

// prjNotificationMapping is PRJ_NOTIFICATION_MAPPING.
type prjNotificationMapping struct {
	NotificationBitMask uint32
	NotificationRoot    *uint16
}

// prjStartVirtualizingOptions is PRJ_STARTVIRTUALIZING_OPTIONS.
type prjStartVirtualizingOptions struct {
	Flags                     uint32
	PoolThreadCount           uint32
	ConcurrentThreadCount     uint32
	NotificationMappings      *prjNotificationMapping
	NotificationMappingsCount uint32
}

// startVirtualizingOptions keeps the native options and the
// memory they refer to alive during PrjStartVirtualizing.
type startVirtualizingOptions struct {
	options  *prjStartVirtualizingOptions
	mappings []prjNotificationMapping
	roots    [][]uint16
}

func newStartVirtualizingOptions(
	options *StartOptions,
) (*startVirtualizingOptions, error) {
	result := &startVirtualizingOptions{}
	if options == nil {
		return result, nil
	}
	for _, mapping := range options.NotificationMappings {
		root, err := windows.UTF16FromString(mapping.Root)
		if err != nil {
			return nil, errors.Wrapf(err,
				"convert notification root %q to UTF16", mapping.Root)
		}
		result.roots = append(result.roots, root)
		result.mappings = append(result.mappings, prjNotificationMapping{
			NotificationBitMask: uint32(mapping.Mask),
			NotificationRoot:    &root[0],
		})
	}
	result.options = &prjStartVirtualizingOptions{
		Flags:                     uint32(options.Flags),
		PoolThreadCount:           options.PoolThreadCount,
		ConcurrentThreadCount:     options.ConcurrentThreadCount,
		NotificationMappingsCount: uint32(len(result.mappings)),
	}
	if len(result.mappings) > 0 {
		result.options.NotificationMappings = &result.mappings[0]
	}
	return result, nil
}

// refMap maps the instance context handed to the engine to the
// Callbacks which serve it. The engine only ever sees the key.
var (
	refMap     sync.Map
	refCounter atomic.Uintptr
)

func registerCallbacks(callbacks Callbacks) uintptr {
	key := refCounter.Add(1)
	refMap.Store(key, callbacks)
	return key
}

func unregisterCallbacks(key uintptr) {
	refMap.Delete(key)
}

func loadCallbacks(callbackData uintptr) (Callbacks, *CallbackData) {
	raw := (*prjCallbackData)(unsafe.Pointer(callbackData))
	value, ok := refMap.Load(raw.InstanceContext)
	if !ok {
		return nil, nil
	}
	return value.(Callbacks), &CallbackData{
		Flags:                          CallbackDataFlags(raw.Flags),
		VirtualizationContext:          VirtualizationContext(raw.NamespaceVirtualizationContext),
		CommandID:                      raw.CommandId,
		FileID:                         raw.FileId,
		DataStreamID:                   raw.DataStreamId,
		FilePath:                       windows.UTF16PtrToString(raw.FilePathName),
		TriggeringProcessID:            raw.TriggeringProcessId,
		TriggeringProcessImageFileName: windows.UTF16PtrToString(raw.TriggeringProcessImageFileName),
	}
}

func utf16PtrToString(ptr uintptr) string {
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(ptr)))
}

func loadGUID(ptr uintptr) GUID {
	if ptr == 0 {
		return GUID{}
	}
	return *(*GUID)(unsafe.Pointer(ptr))
}

func delegateStartDirectoryEnumeration(
	callbackData, enumerationId uintptr,
) HResult {
	callbacks, data := loadCallbacks(callbackData)
	if callbacks == nil {
		return hresultNoRef
	}
	return callbacks.StartDirectoryEnumeration(data, loadGUID(enumerationId))
}

var go_delegateStartDirectoryEnumeration = syscall.NewCallback(func(
	callbackData, enumerationId uintptr,
) uintptr {
	return uintptr(delegateStartDirectoryEnumeration(
		callbackData, enumerationId))
})

func delegateEndDirectoryEnumeration(
	callbackData, enumerationId uintptr,
) HResult {
	callbacks, data := loadCallbacks(callbackData)
	if callbacks == nil {
		return hresultNoRef
	}
	return callbacks.EndDirectoryEnumeration(data, loadGUID(enumerationId))
}

var go_delegateEndDirectoryEnumeration = syscall.NewCallback(func(
	callbackData, enumerationId uintptr,
) uintptr {
	return uintptr(delegateEndDirectoryEnumeration(
		callbackData, enumerationId))
})

func delegateGetDirectoryEnumeration(
	callbackData, enumerationId, searchExpression, dirEntryBufferHandle uintptr,
) HResult {
	callbacks, data := loadCallbacks(callbackData)
	if callbacks == nil {
		return hresultNoRef
	}
	return callbacks.GetDirectoryEnumeration(
		data, loadGUID(enumerationId),
		utf16PtrToString(searchExpression),
		DirEntryBufferHandle(dirEntryBufferHandle),
	)
}

var go_delegateGetDirectoryEnumeration = syscall.NewCallback(func(
	callbackData, enumerationId, searchExpression, dirEntryBufferHandle uintptr,
) uintptr {
	return uintptr(delegateGetDirectoryEnumeration(
		callbackData, enumerationId,
		searchExpression, dirEntryBufferHandle,
	))
})

func delegateGetPlaceholderInfo(callbackData uintptr) HResult {
	callbacks, data := loadCallbacks(callbackData)
	if callbacks == nil {
		return hresultNoRef
	}
	return callbacks.GetPlaceholderInfo(data)
}

var go_delegateGetPlaceholderInfo = syscall.NewCallback(func(
	callbackData uintptr,
) uintptr {
	return uintptr(delegateGetPlaceholderInfo(callbackData))
})

func delegateGetFileData(
	callbackData uintptr, byteOffset uint64, length uint32,
) HResult {
	callbacks, data := loadCallbacks(callbackData)
	if callbacks == nil {
		return hresultNoRef
	}
	return callbacks.GetFileData(data, byteOffset, length)
}

// XXX: the 64-bit offset only fits a single argument slot on
// the 64-bit targets, just like in WriteFileData.
var go_delegateGetFileData = syscall.NewCallback(func(
	callbackData, byteOffset uintptr, length uint32,
) uintptr {
	return uintptr(delegateGetFileData(
		callbackData, uint64(byteOffset), length))
})

func delegateQueryFileName(callbackData uintptr) HResult {
	callbacks, data := loadCallbacks(callbackData)
	if callbacks == nil {
		return hresultNoRef
	}
	return callbacks.QueryFileName(data)
}

var go_delegateQueryFileName = syscall.NewCallback(func(
	callbackData uintptr,
) uintptr {
	return uintptr(delegateQueryFileName(callbackData))
})

func delegateNotification(
	callbackData uintptr, isDirectory uint8, notification uint32,
	destinationFileName, operationParameters uintptr,
) HResult {
	callbacks, data := loadCallbacks(callbackData)
	if callbacks == nil {
		return hresultNoRef
	}
	kind := NotificationKind(notification)
	var params NotificationParameters
	if operationParameters != 0 {
		switch kind {
		case NotificationFileHandleClosedFileDeleted:
			params.IsFileModified = *(*uint8)(
				unsafe.Pointer(operationParameters)) != 0
		case NotificationNewFileCreated,
			NotificationFileOverwritten,
			NotificationFileRenamed:
			params.NotificationMask = NotifyTypes(*(*uint32)(
				unsafe.Pointer(operationParameters)))
		}
	}
	result := callbacks.Notification(
		data, isDirectory != 0, kind,
		utf16PtrToString(destinationFileName), &params,
	)
	if operationParameters != 0 {
		switch kind {
		case NotificationNewFileCreated,
			NotificationFileOverwritten,
			NotificationFileRenamed:
			*(*uint32)(unsafe.Pointer(operationParameters)) =
				uint32(params.NotificationMask)
		}
	}
	return result
}

// BUG: BOOLEAN only defines the lowest byte of isDirectory.
var go_delegateNotification = syscall.NewCallback(func(
	callbackData, isDirectory, notification,
	destinationFileName, operationParameters uintptr,
) uintptr {
	return uintptr(delegateNotification(
		callbackData, uint8(isDirectory), uint32(notification),
		destinationFileName, operationParameters,
	))
})

var nativeCallbacks = prjCallbacks{
	StartDirectoryEnumerationCallback: go_delegateStartDirectoryEnumeration,
	EndDirectoryEnumerationCallback:   go_delegateEndDirectoryEnumeration,
	GetDirectoryEnumerationCallback:   go_delegateGetDirectoryEnumeration,
	GetPlaceholderInfoCallback:        go_delegateGetPlaceholderInfo,
	GetFileDataCallback:               go_delegateGetFileData,
	QueryFileNameCallback:             go_delegateQueryFileName,
	NotificationCallback:              go_delegateNotification,
}
