package projfs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-projfs/go-projfs/filetime"
)

// DebugStruct is the interface to signify that
// the struct has internal fields, which can be
// serialized by the .Field method.
//
// Please notice that the .Field method can return
// nil, and the caller must handle that.
type DebugStruct interface {
	Fields() map[string]any
}

// JoinDebugStructFields with comma, sorted by name.
func JoinDebugStructFields(s DebugStruct) string {
	m := s.Fields()
	if m == nil {
		return ""
	}
	var fields []string
	for key, value := range m {
		fields = append(fields, fmt.Sprintf("%s: %v", key, value))
	}
	sort.Strings(fields)
	return strings.Join(fields, ", ")
}

type debugFlagName struct {
	flag uint32
	name string
}

func joinDebugFlags(value uint32, names []debugFlagName) string {
	var flags []string
	for _, item := range names {
		if value&item.flag != 0 {
			flags = append(flags, item.name)
			value &^= item.flag
		}
	}
	if value != 0 {
		flags = append(flags, fmt.Sprintf("0x%x", value))
	}
	if len(flags) == 0 {
		return "0"
	}
	return strings.Join(flags, "|")
}

// DebugFileAttributes is the format wrapper
// for debugging `fileAttributes` flags.
type DebugFileAttributes uint32

// https://learn.microsoft.com/windows/win32/fileio/file-attribute-constants
var fileAttributesNames = []debugFlagName{
	{FILE_ATTRIBUTE_READONLY, "READONLY"},
	{FILE_ATTRIBUTE_HIDDEN, "HIDDEN"},
	{FILE_ATTRIBUTE_SYSTEM, "SYSTEM"},
	{FILE_ATTRIBUTE_DIRECTORY, "DIRECTORY"},
	{FILE_ATTRIBUTE_ARCHIVE, "ARCHIVE"},
	{FILE_ATTRIBUTE_DEVICE, "DEVICE"},
	{FILE_ATTRIBUTE_NORMAL, "NORMAL"},
	{FILE_ATTRIBUTE_TEMPORARY, "TEMPORARY"},
	{FILE_ATTRIBUTE_SPARSE_FILE, "SPARSE_FILE"},
	{FILE_ATTRIBUTE_REPARSE_POINT, "REPARSE_POINT"},
	{FILE_ATTRIBUTE_COMPRESSED, "COMPRESSED"},
	{FILE_ATTRIBUTE_OFFLINE, "OFFLINE"},
	{FILE_ATTRIBUTE_NOT_CONTENT_INDEXED, "NOT_CONTENT_INDEXED"},
	{FILE_ATTRIBUTE_ENCRYPTED, "ENCRYPTED"},
	{FILE_ATTRIBUTE_INTEGRITY_STREAM, "INTEGRITY_STREAM"},
	{FILE_ATTRIBUTE_VIRTUAL, "VIRTUAL"},
	{FILE_ATTRIBUTE_NO_SCRUB_DATA, "NO_SCRUB_DATA"},
	{FILE_ATTRIBUTE_RECALL_ON_OPEN, "RECALL_ON_OPEN"},
	{FILE_ATTRIBUTE_PINNED, "PINNED"},
	{FILE_ATTRIBUTE_UNPINNED, "UNPINNED"},
	{FILE_ATTRIBUTE_RECALL_ON_DATA_ACCESS, "RECALL_ON_DATA_ACCESS"},
}

func (d DebugFileAttributes) String() string {
	return joinDebugFlags(uint32(d), fileAttributesNames)
}

// DebugCallbackDataFlags is the format wrapper
// for debugging CallbackDataFlags.
type DebugCallbackDataFlags CallbackDataFlags

var callbackDataFlagsNames = []debugFlagName{
	{uint32(CallbackDataFlagEnumRestartScan), "RESTART_SCAN"},
	{uint32(CallbackDataFlagEnumReturnSingleEntry), "RETURN_SINGLE_ENTRY"},
}

func (d DebugCallbackDataFlags) String() string {
	return joinDebugFlags(uint32(d), callbackDataFlagsNames)
}

// DebugNotifyTypes is the format wrapper
// for debugging notification masks.
type DebugNotifyTypes NotifyTypes

var notifyTypesNames = []debugFlagName{
	{uint32(NotifySuppressNotifications), "SUPPRESS_NOTIFICATIONS"},
	{uint32(NotifyFileOpened), "FILE_OPENED"},
	{uint32(NotifyNewFileCreated), "NEW_FILE_CREATED"},
	{uint32(NotifyFileOverwritten), "FILE_OVERWRITTEN"},
	{uint32(NotifyPreDelete), "PRE_DELETE"},
	{uint32(NotifyPreRename), "PRE_RENAME"},
	{uint32(NotifyPreSetHardlink), "PRE_SET_HARDLINK"},
	{uint32(NotifyFileRenamed), "FILE_RENAMED"},
	{uint32(NotifyHardlinkCreated), "HARDLINK_CREATED"},
	{uint32(NotifyFileHandleClosedNoModification), "FILE_HANDLE_CLOSED_NO_MODIFICATION"},
	{uint32(NotifyFileHandleClosedFileModified), "FILE_HANDLE_CLOSED_FILE_MODIFIED"},
	{uint32(NotifyFileHandleClosedFileDeleted), "FILE_HANDLE_CLOSED_FILE_DELETED"},
	{uint32(NotifyFilePreConvertToFull), "FILE_PRE_CONVERT_TO_FULL"},
}

func (d DebugNotifyTypes) String() string {
	if NotifyTypes(d) == NotifyUseExistingMask {
		return "USE_EXISTING_MASK"
	}
	return joinDebugFlags(uint32(d), notifyTypesNames)
}

// DebugFiletime is the format wrapper for
// debugging FILETIME ticks.
type DebugFiletime int64

func (d DebugFiletime) String() string {
	fileTime := int64(d)
	if fileTime == 0 {
		return "Filetime(0)"
	}
	return fmt.Sprintf(
		"Filetime(%d, %q)",
		fileTime,
		filetime.TimeFromRaw(fileTime).UTC().Format(time.RFC3339Nano),
	)
}

// DebugBasicInfo is the format wrapper for
// debugging *FileBasicInfo struct.
type DebugBasicInfo struct {
	*FileBasicInfo
}

func (d DebugBasicInfo) Fields() map[string]any {
	info := d.FileBasicInfo
	if info == nil {
		return nil
	}
	return map[string]any{
		"IsDirectory":    info.IsDirectory,
		"FileSize":       info.FileSize,
		"CreationTime":   DebugFiletime(info.CreationTime),
		"LastAccessTime": DebugFiletime(info.LastAccessTime),
		"LastWriteTime":  DebugFiletime(info.LastWriteTime),
		"ChangeTime":     DebugFiletime(info.ChangeTime),
		"FileAttributes": DebugFileAttributes(info.FileAttributes),
	}
}

func (d DebugBasicInfo) String() string {
	if d.FileBasicInfo == nil {
		return "(*FileBasicInfo)(nil)"
	}
	return "&FileBasicInfo{ " + JoinDebugStructFields(d) + " }"
}

// DebugCallbackData is the format wrapper for
// debugging *CallbackData struct.
type DebugCallbackData struct {
	*CallbackData
}

func (d DebugCallbackData) Fields() map[string]any {
	data := d.CallbackData
	if data == nil {
		return nil
	}
	return map[string]any{
		"CommandID":                      data.CommandID,
		"Flags":                          DebugCallbackDataFlags(data.Flags),
		"FilePath":                       data.FilePath,
		"TriggeringProcessID":            data.TriggeringProcessID,
		"TriggeringProcessImageFileName": data.TriggeringProcessImageFileName,
	}
}

func (d DebugCallbackData) String() string {
	if d.CallbackData == nil {
		return "(*CallbackData)(nil)"
	}
	return "&CallbackData{ " + JoinDebugStructFields(d) + " }"
}
