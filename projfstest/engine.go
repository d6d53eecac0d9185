// Package projfstest emulates the projected file system engine
// in memory, so that a projection can be driven on any
// platform.
//
// The Engine implements projfs.Library. A projection started
// with projfs.UseLibrary(engine) is then driven through the
// Virtualization of its root, which plays the role of the host:
// listing directories, resolving placeholders, reading files
// and reporting notifications, while checking that the
// projection answers the way the host expects.
package projfstest

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/go-projfs/go-projfs"
)

// DefaultEntriesPerBuffer is the default number of directory
// entries fitting a directory entry buffer.
const DefaultEntriesPerBuffer = 2

// bufferAlignment is the alignment of the aligned buffers.
const bufferAlignment = 4096

var (
	// ErrStopped is returned by a Virtualization which has been
	// stopped.
	ErrStopped = errors.New("projfstest: virtualization stopped")

	// ErrNotMarked is returned when starting the virtualization
	// of a root which is not marked as placeholder.
	ErrNotMarked = projfs.HResultFromWin32(4390) // ERROR_NOT_A_REPARSE_POINT
)

// Engine is an in-memory projfs.Library.
//
// The exported fields may be set before the engine is used.
type Engine struct {
	// EntriesPerBuffer is the number of entries each directory
	// entry buffer holds, DefaultEntriesPerBuffer if zero.
	EntriesPerBuffer int

	// MarkError and StartError make the corresponding call of
	// the engine fail.
	MarkError  error
	StartError error

	// FailAllocation makes AllocateAlignedBuffer report being
	// out of memory.
	FailAllocation bool

	mtx          sync.Mutex
	nextHandle   uintptr
	marked       map[string]projfs.GUID
	roots        map[string]*Virtualization
	contexts     map[projfs.VirtualizationContext]*Virtualization
	dirBuffers   map[projfs.DirEntryBufferHandle]*dirEntryBuffer
	aligned      map[*byte]int
	allocations  atomic.Int64
	invalidFrees atomic.Int64
}

func (e *Engine) init() {
	if e.marked == nil {
		e.marked = make(map[string]projfs.GUID)
		e.roots = make(map[string]*Virtualization)
		e.contexts = make(map[projfs.VirtualizationContext]*Virtualization)
		e.dirBuffers = make(map[projfs.DirEntryBufferHandle]*dirEntryBuffer)
		e.aligned = make(map[*byte]int)
	}
}

func (e *Engine) newHandle() uintptr {
	e.nextHandle++
	return e.nextHandle
}

func (e *Engine) entriesPerBuffer() int {
	if e.EntriesPerBuffer <= 0 {
		return DefaultEntriesPerBuffer
	}
	return e.EntriesPerBuffer
}

func rootKey(root string) string {
	return strings.ToUpper(filepath.Clean(root))
}

// MarkedID returns the instance id the root has been marked
// with, if it has been marked.
func (e *Engine) MarkedID(root string) (projfs.GUID, bool) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.init()
	id, ok := e.marked[rootKey(root)]
	return id, ok
}

// Virtualization returns the running virtualization of the
// root, or nil if there is none.
func (e *Engine) Virtualization(root string) *Virtualization {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.init()
	return e.roots[rootKey(root)]
}

// LiveAllocations is the number of aligned buffers allocated
// and not freed yet.
func (e *Engine) LiveAllocations() int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return len(e.aligned)
}

// Allocations is the total number of aligned buffers allocated.
func (e *Engine) Allocations() int64 {
	return e.allocations.Load()
}

// InvalidFrees is the number of frees of buffers which were not
// allocated by the engine, or were freed already.
func (e *Engine) InvalidFrees() int64 {
	return e.invalidFrees.Load()
}

func (e *Engine) AllocateAlignedBuffer(
	vctx projfs.VirtualizationContext, size int,
) []byte {
	if e.FailAllocation || size <= 0 {
		return nil
	}
	raw := make([]byte, size+bufferAlignment)
	pad := (bufferAlignment - int(uintptr(unsafe.Pointer(&raw[0]))%bufferAlignment)) % bufferAlignment
	buffer := raw[pad : pad+size : pad+size]
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.init()
	e.aligned[&buffer[0]] = size
	e.allocations.Add(1)
	return buffer
}

func (e *Engine) FreeAlignedBuffer(buffer []byte) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.init()
	if cap(buffer) == 0 {
		e.invalidFrees.Add(1)
		return
	}
	base := unsafe.SliceData(buffer)
	if _, ok := e.aligned[base]; !ok {
		e.invalidFrees.Add(1)
		return
	}
	delete(e.aligned, base)
}

// isAligned checks that the buffer lies inside a live aligned
// buffer of the engine.
func (e *Engine) isAligned(buffer []byte) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if len(buffer) == 0 {
		return false
	}
	start := uintptr(unsafe.Pointer(&buffer[0]))
	for base, size := range e.aligned {
		origin := uintptr(unsafe.Pointer(base))
		if start >= origin && start+uintptr(len(buffer)) <= origin+uintptr(size) {
			return true
		}
	}
	return false
}

func (e *Engine) FileNameCompare(name1, name2 []uint16) int {
	return projfs.CompareFileNames(projfs.DecodeFileName(name1), projfs.DecodeFileName(name2))
}

func (e *Engine) FileNameMatch(name, pattern []uint16) bool {
	return projfs.MatchFileName(projfs.DecodeFileName(name), projfs.DecodeFileName(pattern))
}

func (e *Engine) MarkDirectoryAsPlaceholder(
	rootPath, targetPath string,
	versionInfo *projfs.PlaceholderVersionInfo,
	instanceID projfs.GUID,
) error {
	if e.MarkError != nil {
		return e.MarkError
	}
	if targetPath != "" {
		return projfs.E_INVALIDARG
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.init()
	e.marked[rootKey(rootPath)] = instanceID
	return nil
}

func (e *Engine) StartVirtualizing(
	rootPath string, callbacks projfs.Callbacks,
	options *projfs.StartOptions,
) (projfs.VirtualizationContext, error) {
	if e.StartError != nil {
		return 0, e.StartError
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.init()
	key := rootKey(rootPath)
	if _, ok := e.marked[key]; !ok {
		return 0, ErrNotMarked
	}
	if _, ok := e.roots[key]; ok {
		return 0, projfs.HResultFromWin32(projfs.ERROR_ALREADY_EXISTS)
	}
	var opts projfs.StartOptions
	if options != nil {
		opts = *options
	}
	v := &Virtualization{
		engine:       e,
		root:         rootPath,
		callbacks:    callbacks,
		options:      opts,
		vctx:         projfs.VirtualizationContext(e.newHandle()),
		placeholders: make(map[string]Placeholder),
		streams:      make(map[projfs.GUID]*dataStream),
	}
	e.roots[key] = v
	e.contexts[v.vctx] = v
	return v.vctx, nil
}

func (e *Engine) StopVirtualizing(vctx projfs.VirtualizationContext) {
	e.mtx.Lock()
	v := e.contexts[vctx]
	e.mtx.Unlock()
	if v == nil {
		return
	}
	v.stop()
	e.mtx.Lock()
	defer e.mtx.Unlock()
	delete(e.contexts, vctx)
	delete(e.roots, rootKey(v.root))
}

func (e *Engine) FillDirEntryBuffer(
	name []uint16, info *projfs.FileBasicInfo,
	buffer projfs.DirEntryBufferHandle,
) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	dirBuffer := e.dirBuffers[buffer]
	if dirBuffer == nil {
		return projfs.E_INVALIDARG
	}
	if len(dirBuffer.entries) >= dirBuffer.capacity {
		return projfs.HResultFromWin32(projfs.ERROR_INSUFFICIENT_BUFFER)
	}
	dirBuffer.entries = append(dirBuffer.entries, Entry{
		Name: projfs.DecodeFileName(name),
		Info: *info,
	})
	return nil
}

func (e *Engine) WritePlaceholderInfo(
	vctx projfs.VirtualizationContext,
	destinationFileName []uint16,
	info *projfs.PlaceholderInfo,
) error {
	e.mtx.Lock()
	v := e.contexts[vctx]
	e.mtx.Unlock()
	if v == nil {
		return projfs.E_INVALIDARG
	}
	v.writePlaceholder(projfs.DecodeFileName(destinationFileName), info.FileBasicInfo)
	return nil
}

func (e *Engine) WriteFileData(
	vctx projfs.VirtualizationContext, dataStreamID projfs.GUID,
	buffer []byte, byteOffset uint64,
) error {
	if !e.isAligned(buffer) {
		return projfs.E_INVALIDARG
	}
	e.mtx.Lock()
	v := e.contexts[vctx]
	e.mtx.Unlock()
	if v == nil {
		return projfs.E_INVALIDARG
	}
	return v.writeData(dataStreamID, buffer, byteOffset)
}

func (e *Engine) newDirEntryBuffer(capacity int) projfs.DirEntryBufferHandle {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.init()
	handle := projfs.DirEntryBufferHandle(e.newHandle())
	e.dirBuffers[handle] = &dirEntryBuffer{capacity: capacity}
	return handle
}

func (e *Engine) takeDirEntryBuffer(handle projfs.DirEntryBufferHandle) []Entry {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	dirBuffer := e.dirBuffers[handle]
	delete(e.dirBuffers, handle)
	if dirBuffer == nil {
		return nil
	}
	return dirBuffer.entries
}

type dirEntryBuffer struct {
	capacity int
	entries  []Entry
}

var _ projfs.Library = (*Engine)(nil)
