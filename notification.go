package projfs

import (
	"fmt"
)

// NotificationKind is PRJ_NOTIFICATION, the file system event
// reported to the projection. Every kind equals the bit of the
// NotifyTypes mask that subscribes to it.
type NotificationKind uint32

const (
	NotificationFileOpened                     = NotificationKind(NotifyFileOpened)
	NotificationNewFileCreated                 = NotificationKind(NotifyNewFileCreated)
	NotificationFileOverwritten                = NotificationKind(NotifyFileOverwritten)
	NotificationPreDelete                      = NotificationKind(NotifyPreDelete)
	NotificationPreRename                      = NotificationKind(NotifyPreRename)
	NotificationPreSetHardlink                 = NotificationKind(NotifyPreSetHardlink)
	NotificationFileRenamed                    = NotificationKind(NotifyFileRenamed)
	NotificationHardlinkCreated                = NotificationKind(NotifyHardlinkCreated)
	NotificationFileHandleClosedNoModification = NotificationKind(NotifyFileHandleClosedNoModification)
	NotificationFileHandleClosedFileModified   = NotificationKind(NotifyFileHandleClosedFileModified)
	NotificationFileHandleClosedFileDeleted    = NotificationKind(NotifyFileHandleClosedFileDeleted)
	NotificationFilePreConvertToFull           = NotificationKind(NotifyFilePreConvertToFull)
)

var notificationKindNames = map[NotificationKind]string{
	NotificationFileOpened:                     "FileOpened",
	NotificationNewFileCreated:                 "NewFileCreated",
	NotificationFileOverwritten:                "FileOverwritten",
	NotificationPreDelete:                      "PreDelete",
	NotificationPreRename:                      "PreRename",
	NotificationPreSetHardlink:                 "PreSetHardlink",
	NotificationFileRenamed:                    "FileRenamed",
	NotificationHardlinkCreated:                "HardlinkCreated",
	NotificationFileHandleClosedNoModification: "FileHandleClosedNoModification",
	NotificationFileHandleClosedFileModified:   "FileHandleClosedFileModified",
	NotificationFileHandleClosedFileDeleted:    "FileHandleClosedFileDeleted",
	NotificationFilePreConvertToFull:           "FilePreConvertToFull",
}

func (k NotificationKind) String() string {
	if name, ok := notificationKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("NotificationKind(0x%x)", uint32(k))
}

// Cancelable reports whether the host fails the operation when
// the notification is answered with an error, so that a Break
// verdict denies it.
func (k NotificationKind) Cancelable() bool {
	switch k {
	case NotificationFileOpened,
		NotificationNewFileCreated,
		NotificationFileOverwritten,
		NotificationPreDelete,
		NotificationPreRename,
		NotificationPreSetHardlink,
		NotificationFilePreConvertToFull:
		return true
	}
	return false
}

// NotificationTarget identifies the file of a notification.
type NotificationTarget struct {
	FileID                         GUID
	Path                           string
	IsDirectory                    bool
	TriggeringProcessID            uint32
	TriggeringProcessImageFileName string
}

// Notification is a file system event inside the virtualization
// root. Paths are source paths.
type Notification struct {
	Kind   NotificationKind
	Target NotificationTarget

	// Destination is the new path for renames and hard links.
	// It is empty when the destination lies outside the root.
	Destination string

	// FileModified is set on FileHandleClosedFileDeleted when
	// the file was modified before being deleted.
	FileModified bool
}

// NotificationParameters is the decoded PRJ_NOTIFICATION_PARAMETERS.
type NotificationParameters struct {
	// NotificationMask is the mask which the provider may set for
	// the newly created file on NewFileCreated, FileOverwritten
	// and FileRenamed. It is left untouched by the projection.
	NotificationMask NotifyTypes

	// IsFileModified is meaningful on FileHandleClosedFileDeleted.
	IsFileModified bool
}
