package projfs_test

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-projfs/go-projfs"
	"github.com/go-projfs/go-projfs/memsource"
	"github.com/go-projfs/go-projfs/projfstest"
)

// vetoSource breaks every notification of the kinds it vetoes,
// and records all notifications it receives.
type vetoSource struct {
	*memsource.Source
	veto map[projfs.NotificationKind]bool

	mtx      sync.Mutex
	received []projfs.Notification
}

func (s *vetoSource) HandleNotification(n *projfs.Notification) projfs.ControlFlow {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.received = append(s.received, *n)
	if s.veto[n.Kind] {
		return projfs.Break
	}
	return projfs.Continue
}

func (s *vetoSource) last() projfs.Notification {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.received[len(s.received)-1]
}

func (s *vetoSource) count() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.received)
}

func TestNotificationCancelable(t *testing.T) {
	assert := Assert{assert.New(t)}
	cancelable := []projfs.NotificationKind{
		projfs.NotificationFileOpened,
		projfs.NotificationNewFileCreated,
		projfs.NotificationFileOverwritten,
		projfs.NotificationPreDelete,
		projfs.NotificationPreRename,
		projfs.NotificationPreSetHardlink,
		projfs.NotificationFilePreConvertToFull,
	}
	source := &vetoSource{
		Source: testSource(),
		veto:   make(map[projfs.NotificationKind]bool),
	}
	for _, kind := range cancelable {
		source.veto[kind] = true
	}
	_, _, v := startProjection(t, source)

	for _, kind := range cancelable {
		assert.True(kind.Cancelable(), kind.String())
		err := v.Notify(projfstest.Event{Kind: kind, Path: "Test-A/Hello.txt"})
		assert.ErrorIs(err, os.ErrPermission, kind.String())
	}
	assert.Equal(len(cancelable), source.count())

	// A vetoed kind goes through once it is not vetoed anymore.
	source.veto[projfs.NotificationPreDelete] = false
	assert.NoError(v.Notify(projfstest.Event{
		Kind: projfs.NotificationPreDelete, Path: "My_File.txt",
	}))
}

func TestNotificationNotCancelable(t *testing.T) {
	assert := Assert{assert.New(t)}
	kinds := []projfs.NotificationKind{
		projfs.NotificationFileRenamed,
		projfs.NotificationHardlinkCreated,
		projfs.NotificationFileHandleClosedNoModification,
		projfs.NotificationFileHandleClosedFileModified,
		projfs.NotificationFileHandleClosedFileDeleted,
	}
	source := &vetoSource{
		Source: testSource(),
		veto:   make(map[projfs.NotificationKind]bool),
	}
	for _, kind := range kinds {
		source.veto[kind] = true
	}
	logger, hook := newHookLogger()
	_, _, v := startProjection(t, source, logger)

	for _, kind := range kinds {
		assert.False(kind.Cancelable(), kind.String())
		assert.NoError(v.Notify(projfstest.Event{Kind: kind, Path: "Test-B"}))
	}
	assert.Equal(len(kinds), source.count())
	assert.Contains(hookMessages(hook), "cannot be cancelled")
}

func TestNotificationPayload(t *testing.T) {
	assert := Assert{assert.New(t)}
	source := &vetoSource{Source: testSource()}
	_, _, v := startProjection(t, source)

	assert.NoError(v.Notify(projfstest.Event{
		Kind:        projfs.NotificationFileRenamed,
		Path:        "Test-A/Hello.txt",
		Destination: "Test-B/Renamed.txt",
	}))
	n := source.last()
	assert.Equal(projfs.NotificationFileRenamed, n.Kind)
	assert.Equal("Test-A/Hello.txt", n.Target.Path)
	assert.Equal("Test-B/Renamed.txt", n.Destination)
	assert.False(n.Target.IsDirectory)
	assert.False(n.Target.FileID.IsZero())
	assert.Equal(uint32(4242), n.Target.TriggeringProcessID)
	assert.Equal(`C:\Windows\explorer.exe`, n.Target.TriggeringProcessImageFileName)

	assert.NoError(v.Notify(projfstest.Event{
		Kind:         projfs.NotificationFileHandleClosedFileDeleted,
		Path:         "Test-B",
		IsDirectory:  true,
		FileModified: true,
	}))
	n = source.last()
	assert.True(n.Target.IsDirectory)
	assert.True(n.FileModified)
	assert.Empty(n.Destination)
}

func TestNotificationMask(t *testing.T) {
	assert := Assert{assert.New(t)}
	source := &vetoSource{
		Source: testSource(),
		veto: map[projfs.NotificationKind]bool{
			projfs.NotificationPreDelete: true,
			projfs.NotificationPreRename: true,
		},
	}
	_, _, v := startProjection(t, source,
		projfs.NotificationMask(projfs.NotifyPreRename))

	// Not subscribed, so the host never asks.
	assert.NoError(v.Notify(projfstest.Event{
		Kind: projfs.NotificationPreDelete, Path: "My_File.txt",
	}))
	assert.Zero(source.count())

	assert.ErrorIs(v.Notify(projfstest.Event{
		Kind: projfs.NotificationPreRename, Path: "My_File.txt",
	}), os.ErrPermission)
	assert.Equal(1, source.count())
}

func TestNotificationWithoutHandler(t *testing.T) {
	assert := Assert{assert.New(t)}
	_, _, v := startProjection(t, testSource())
	assert.NoError(v.Notify(projfstest.Event{
		Kind: projfs.NotificationPreDelete, Path: "My_File.txt",
	}))
}
