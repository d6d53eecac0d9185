package projfs

import (
	"fmt"
)

// GUID is the native 128-bit identifier, laid out exactly as the
// GUID structure of the host so that it can be read in place from
// the pointers handed to the callbacks.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// IsZero reports whether the GUID is the null GUID.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

func (g GUID) String() string {
	return fmt.Sprintf("{%08X-%04X-%04X-%02X%02X-%02X%02X%02X%02X%02X%02X}",
		g.Data1, g.Data2, g.Data3,
		g.Data4[0], g.Data4[1],
		g.Data4[2], g.Data4[3], g.Data4[4],
		g.Data4[5], g.Data4[6], g.Data4[7])
}

// VirtualizationContext is the handle of a running virtualization
// instance, called PRJ_NAMESPACE_VIRTUALIZATION_CONTEXT natively.
type VirtualizationContext uintptr

// DirEntryBufferHandle is the opaque handle of the bounded output
// buffer of a single GetDirectoryEnumeration call.
type DirEntryBufferHandle uintptr

// File attribute bits understood by the host.
const (
	FILE_ATTRIBUTE_READONLY              = 0x00000001
	FILE_ATTRIBUTE_HIDDEN                = 0x00000002
	FILE_ATTRIBUTE_SYSTEM                = 0x00000004
	FILE_ATTRIBUTE_DIRECTORY             = 0x00000010
	FILE_ATTRIBUTE_ARCHIVE               = 0x00000020
	FILE_ATTRIBUTE_DEVICE                = 0x00000040
	FILE_ATTRIBUTE_NORMAL                = 0x00000080
	FILE_ATTRIBUTE_TEMPORARY             = 0x00000100
	FILE_ATTRIBUTE_SPARSE_FILE           = 0x00000200
	FILE_ATTRIBUTE_REPARSE_POINT         = 0x00000400
	FILE_ATTRIBUTE_COMPRESSED            = 0x00000800
	FILE_ATTRIBUTE_OFFLINE               = 0x00001000
	FILE_ATTRIBUTE_NOT_CONTENT_INDEXED   = 0x00002000
	FILE_ATTRIBUTE_ENCRYPTED             = 0x00004000
	FILE_ATTRIBUTE_INTEGRITY_STREAM      = 0x00008000
	FILE_ATTRIBUTE_VIRTUAL               = 0x00010000
	FILE_ATTRIBUTE_NO_SCRUB_DATA         = 0x00020000
	FILE_ATTRIBUTE_RECALL_ON_OPEN        = 0x00040000
	FILE_ATTRIBUTE_PINNED                = 0x00080000
	FILE_ATTRIBUTE_UNPINNED              = 0x00100000
	FILE_ATTRIBUTE_RECALL_ON_DATA_ACCESS = 0x00400000
)

// FileBasicInfo is PRJ_FILE_BASIC_INFO.
//
// The timestamps are FILETIME values, see the filetime package for
// conversion from and to time.Time.
type FileBasicInfo struct {
	IsDirectory    bool
	FileSize       int64
	CreationTime   int64
	LastAccessTime int64
	LastWriteTime  int64
	ChangeTime     int64
	FileAttributes uint32
}

// PLACEHOLDER_ID_LENGTH is PRJ_PLACEHOLDER_ID_LENGTH.
const PLACEHOLDER_ID_LENGTH = 128

// PlaceholderVersionInfo is PRJ_PLACEHOLDER_VERSION_INFO.
type PlaceholderVersionInfo struct {
	ProviderID [PLACEHOLDER_ID_LENGTH]uint8
	ContentID  [PLACEHOLDER_ID_LENGTH]uint8
}

// PlaceholderInfo is PRJ_PLACEHOLDER_INFO.
type PlaceholderInfo struct {
	FileBasicInfo FileBasicInfo
	EaInformation struct {
		EaBufferSize    uint32
		OffsetToFirstEa uint32
	}
	SecurityInformation struct {
		SecurityBufferSize         uint32
		OffsetToSecurityDescriptor uint32
	}
	StreamsInformation struct {
		StreamsInfoBufferSize   uint32
		OffsetToFirstStreamInfo uint32
	}
	VersionInfo  PlaceholderVersionInfo
	VariableData [1]uint8
}

// CallbackDataFlags is PRJ_CALLBACK_DATA_FLAGS.
type CallbackDataFlags uint32

const (
	CallbackDataFlagEnumRestartScan       = CallbackDataFlags(0x00000001)
	CallbackDataFlagEnumReturnSingleEntry = CallbackDataFlags(0x00000002)
)

// NotifyTypes is the PRJ_NOTIFY_TYPES bit mask selecting which
// lifecycle events the host reports.
type NotifyTypes uint32

const (
	NotifyNone                           = NotifyTypes(0x00000000)
	NotifySuppressNotifications          = NotifyTypes(0x00000001)
	NotifyFileOpened                     = NotifyTypes(0x00000002)
	NotifyNewFileCreated                 = NotifyTypes(0x00000004)
	NotifyFileOverwritten                = NotifyTypes(0x00000008)
	NotifyPreDelete                      = NotifyTypes(0x00000010)
	NotifyPreRename                      = NotifyTypes(0x00000020)
	NotifyPreSetHardlink                 = NotifyTypes(0x00000040)
	NotifyFileRenamed                    = NotifyTypes(0x00000080)
	NotifyHardlinkCreated                = NotifyTypes(0x00000100)
	NotifyFileHandleClosedNoModification = NotifyTypes(0x00000200)
	NotifyFileHandleClosedFileModified   = NotifyTypes(0x00000400)
	NotifyFileHandleClosedFileDeleted    = NotifyTypes(0x00000800)
	NotifyFilePreConvertToFull           = NotifyTypes(0x00001000)
	NotifyUseExistingMask                = NotifyTypes(0xFFFFFFFF)
)

const (
	// NotifyAll covers every lifecycle event of the host.
	NotifyAll = NotifyTypes(0) |
		NotifyFileOpened |
		NotifyNewFileCreated |
		NotifyFileOverwritten |
		NotifyPreDelete |
		NotifyPreRename |
		NotifyPreSetHardlink |
		NotifyFileRenamed |
		NotifyHardlinkCreated |
		NotifyFileHandleClosedNoModification |
		NotifyFileHandleClosedFileModified |
		NotifyFileHandleClosedFileDeleted |
		NotifyFilePreConvertToFull
)

// StartFlags is PRJ_STARTVIRTUALIZING_FLAGS.
type StartFlags uint32

const (
	StartFlagNone              = StartFlags(0x00000000)
	StartFlagNegativePathCache = StartFlags(0x00000001)
)

// NotificationMapping selects the notifications delivered for the
// subtree at Root, which is relative to the virtualization root and
// empty for the whole tree.
type NotificationMapping struct {
	Mask NotifyTypes
	Root string
}

// StartOptions is PRJ_STARTVIRTUALIZING_OPTIONS.
type StartOptions struct {
	Flags                 StartFlags
	PoolThreadCount       uint32
	ConcurrentThreadCount uint32
	NotificationMappings  []NotificationMapping
}

// CallbackData is the decoded PRJ_CALLBACK_DATA of one callback.
//
// FilePath is in the host's form: relative to the virtualization
// root, separated by backslashes, and empty for the root itself.
type CallbackData struct {
	Flags                          CallbackDataFlags
	VirtualizationContext          VirtualizationContext
	CommandID                      int32
	FileID                         GUID
	DataStreamID                   GUID
	FilePath                       string
	TriggeringProcessID            uint32
	TriggeringProcessImageFileName string
}
