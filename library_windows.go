//go:build windows

package projfs

import (
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

const projectedFSLibName = "ProjectedFSLib.dll"

type procCaller interface {
	Call(args ...uintptr) (uintptr, uintptr, error)
}

// dllProc is a wrapper around a resolved procedure of the
// engine, either a *syscall.Proc or a *windows.LazyProc.
type dllProc struct {
	name string
	proc procCaller
}

// Valid reports whether the procedure has been resolved.
func (p dllProc) Valid() bool {
	return p.proc != nil
}

// Call invokes the procedure and returns its first result. The
// engine never reports through the last error, so it is dropped.
func (p dllProc) Call(args ...uintptr) uintptr {
	res1, _, _ := p.proc.Call(args...)
	return res1
}

// CallHResult is for procedures returning a HRESULT status code,
// which is returned as an error if it has failed.
func (p dllProc) CallHResult(args ...uintptr) error {
	status := HResult(uint32(p.Call(args...)))
	if status.Failed() {
		return status
	}
	return nil
}

type nativeLibrary struct {
	name string

	allocateAlignedBuffer      dllProc
	freeAlignedBuffer          dllProc
	fileNameCompare            dllProc
	fileNameMatch              dllProc
	markDirectoryAsPlaceholder dllProc
	startVirtualizing          dllProc
	stopVirtualizing           dllProc
	fillDirEntryBuffer         dllProc
	fillDirEntryBuffer2        dllProc
	writePlaceholderInfo       dllProc
	writeFileData              dllProc

	// instances maps the VirtualizationContext to the key of
	// the callbacks in the refMap.
	instances sync.Map
}

type dllProcRegistryItem struct {
	name     string
	target   *dllProc
	optional bool
}

func (l *nativeLibrary) registry() []dllProcRegistryItem {
	return []dllProcRegistryItem{
		{name: "PrjAllocateAlignedBuffer", target: &l.allocateAlignedBuffer},
		{name: "PrjFreeAlignedBuffer", target: &l.freeAlignedBuffer},
		{name: "PrjFileNameCompare", target: &l.fileNameCompare},
		{name: "PrjFileNameMatch", target: &l.fileNameMatch},
		{name: "PrjMarkDirectoryAsPlaceholder", target: &l.markDirectoryAsPlaceholder},
		{name: "PrjStartVirtualizing", target: &l.startVirtualizing},
		{name: "PrjStopVirtualizing", target: &l.stopVirtualizing},
		{name: "PrjFillDirEntryBuffer", target: &l.fillDirEntryBuffer},
		{name: "PrjFillDirEntryBuffer2", target: &l.fillDirEntryBuffer2, optional: true},
		{name: "PrjWritePlaceholderInfo", target: &l.writePlaceholderInfo},
		{name: "PrjWriteFileData", target: &l.writeFileData},
	}
}

var (
	staticOnce    sync.Once
	staticLibrary *nativeLibrary
)

// loadStaticLibrary binds every procedure lazily from the system
// directory. Calling into a procedure which cannot be found will
// panic, just like a failed import of the executable would abort.
func loadStaticLibrary() *nativeLibrary {
	staticOnce.Do(func() {
		dll := windows.NewLazySystemDLL(projectedFSLibName)
		lib := &nativeLibrary{name: projectedFSLibName}
		for _, item := range lib.registry() {
			*item.target = dllProc{name: item.name, proc: dll.NewProc(item.name)}
		}
		staticLibrary = lib
	})
	return staticLibrary
}

func bindLibrary(dll *syscall.DLL) (*nativeLibrary, error) {
	lib := &nativeLibrary{name: dll.Name}
	for _, item := range lib.registry() {
		proc, err := dll.FindProc(item.name)
		if err != nil {
			if item.optional {
				continue
			}
			return nil, &LibraryError{
				Library: dll.Name,
				Proc:    item.name,
				Err:     err,
			}
		}
		*item.target = dllProc{name: item.name, proc: proc}
	}
	return lib, nil
}

func loadDynamicLibrary() (*nativeLibrary, error) {
	hdll, err := windows.LoadLibraryEx(
		projectedFSLibName, windows.Handle(0),
		windows.LOAD_LIBRARY_SEARCH_SYSTEM32,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_MOD_NOT_FOUND) {
			return nil, ErrFeatureNotEnabled
		}
		return nil, &LibraryError{Library: projectedFSLibName, Err: err}
	}
	lib, err := bindLibrary(&syscall.DLL{
		Name:   projectedFSLibName,
		Handle: syscall.Handle(hdll),
	})
	if err != nil {
		_ = windows.FreeLibrary(hdll)
		return nil, err
	}
	return lib, nil
}

var (
	tryLoadOnce sync.Once
	tryLoadLib  *nativeLibrary
	tryLoadErr  error
)

// tryLoadDynamicLibrary resolves the library once, the error
// will be persistent.
func tryLoadDynamicLibrary() (*nativeLibrary, error) {
	tryLoadOnce.Do(func() {
		tryLoadLib, tryLoadErr = loadDynamicLibrary()
	})
	return tryLoadLib, tryLoadErr
}

func resolveLibrary(strategy Strategy) (Library, error) {
	switch strategy {
	case StaticBinding:
		return loadStaticLibrary(), nil
	case DynamicResolution:
		lib, err := tryLoadDynamicLibrary()
		if err != nil {
			return nil, err
		}
		return lib, nil
	}
	return nil, errors.Errorf("projfs: unknown strategy %d", int(strategy))
}

// LoadLibraryWithDLL resolves the entry points from the DLL
// provided, instead of the one in the system directory.
//
// If the default loading process does not work for you, then
// explicitly specifying one is the only choice. But you have to
// take your own risk now.
func LoadLibraryWithDLL(dll *syscall.DLL) (Library, error) {
	lib, err := bindLibrary(dll)
	if err != nil {
		return nil, err
	}
	return lib, nil
}

func utf16Ptr(name []uint16) uintptr {
	if len(name) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&name[0]))
}

func (l *nativeLibrary) AllocateAlignedBuffer(
	vctx VirtualizationContext, size int,
) []byte {
	if size <= 0 {
		return nil
	}
	ptr := l.allocateAlignedBuffer.Call(uintptr(vctx), uintptr(size))
	if ptr == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
}

func (l *nativeLibrary) FreeAlignedBuffer(buffer []byte) {
	if cap(buffer) == 0 {
		return
	}
	l.freeAlignedBuffer.Call(uintptr(unsafe.Pointer(unsafe.SliceData(buffer))))
}

func (l *nativeLibrary) FileNameCompare(name1, name2 []uint16) int {
	result := l.fileNameCompare.Call(utf16Ptr(name1), utf16Ptr(name2))
	runtime.KeepAlive(name1)
	runtime.KeepAlive(name2)
	return int(int32(uint32(result)))
}

func (l *nativeLibrary) FileNameMatch(name, pattern []uint16) bool {
	result := l.fileNameMatch.Call(utf16Ptr(name), utf16Ptr(pattern))
	runtime.KeepAlive(name)
	runtime.KeepAlive(pattern)
	// BUG: BOOLEAN only defines the lowest byte of the result.
	return uint8(result) != 0
}

func (l *nativeLibrary) MarkDirectoryAsPlaceholder(
	rootPath, targetPath string,
	versionInfo *PlaceholderVersionInfo,
	instanceID GUID,
) error {
	utf16RootPath, err := windows.UTF16FromString(rootPath)
	if err != nil {
		return errors.Wrap(err, "convert root path to UTF16")
	}
	var utf16TargetPath []uint16
	if targetPath != "" {
		utf16TargetPath, err = windows.UTF16FromString(targetPath)
		if err != nil {
			return errors.Wrap(err, "convert target path to UTF16")
		}
	}
	err = l.markDirectoryAsPlaceholder.CallHResult(
		utf16Ptr(utf16RootPath),
		utf16Ptr(utf16TargetPath),
		uintptr(unsafe.Pointer(versionInfo)),
		uintptr(unsafe.Pointer(&instanceID)),
	)
	runtime.KeepAlive(utf16RootPath)
	runtime.KeepAlive(utf16TargetPath)
	runtime.KeepAlive(versionInfo)
	return err
}

func (l *nativeLibrary) StartVirtualizing(
	rootPath string, callbacks Callbacks, options *StartOptions,
) (VirtualizationContext, error) {
	utf16RootPath, err := windows.UTF16FromString(rootPath)
	if err != nil {
		return 0, errors.Wrap(err, "convert root path to UTF16")
	}
	nativeOptions, err := newStartVirtualizingOptions(options)
	if err != nil {
		return 0, err
	}
	key := registerCallbacks(callbacks)
	var vctx uintptr
	err = l.startVirtualizing.CallHResult(
		utf16Ptr(utf16RootPath),
		uintptr(unsafe.Pointer(&nativeCallbacks)),
		key,
		uintptr(unsafe.Pointer(nativeOptions.options)),
		uintptr(unsafe.Pointer(&vctx)),
	)
	runtime.KeepAlive(utf16RootPath)
	runtime.KeepAlive(nativeOptions)
	if err != nil {
		unregisterCallbacks(key)
		return 0, err
	}
	l.instances.Store(VirtualizationContext(vctx), key)
	return VirtualizationContext(vctx), nil
}

func (l *nativeLibrary) StopVirtualizing(vctx VirtualizationContext) {
	l.stopVirtualizing.Call(uintptr(vctx))
	if key, ok := l.instances.LoadAndDelete(vctx); ok {
		unregisterCallbacks(key.(uintptr))
	}
}

func (l *nativeLibrary) FillDirEntryBuffer(
	name []uint16, info *FileBasicInfo, buffer DirEntryBufferHandle,
) error {
	var err error
	if l.fillDirEntryBuffer2.Valid() {
		err = l.fillDirEntryBuffer2.CallHResult(
			uintptr(buffer),
			utf16Ptr(name),
			uintptr(unsafe.Pointer(info)),
			uintptr(0), // ExtendedInfo
		)
	} else {
		err = l.fillDirEntryBuffer.CallHResult(
			utf16Ptr(name),
			uintptr(unsafe.Pointer(info)),
			uintptr(buffer),
		)
	}
	runtime.KeepAlive(name)
	runtime.KeepAlive(info)
	return err
}

func (l *nativeLibrary) WritePlaceholderInfo(
	vctx VirtualizationContext,
	destinationFileName []uint16,
	info *PlaceholderInfo,
) error {
	err := l.writePlaceholderInfo.CallHResult(
		uintptr(vctx),
		utf16Ptr(destinationFileName),
		uintptr(unsafe.Pointer(info)),
		unsafe.Sizeof(*info),
	)
	runtime.KeepAlive(destinationFileName)
	runtime.KeepAlive(info)
	return err
}

func (l *nativeLibrary) WriteFileData(
	vctx VirtualizationContext, dataStreamID GUID,
	buffer []byte, byteOffset uint64,
) error {
	if len(buffer) == 0 {
		return nil
	}
	// XXX: the 64-bit offset only fits a single argument slot
	// on the 64-bit targets.
	err := l.writeFileData.CallHResult(
		uintptr(vctx),
		uintptr(unsafe.Pointer(&dataStreamID)),
		uintptr(unsafe.Pointer(&buffer[0])),
		uintptr(byteOffset),
		uintptr(uint32(len(buffer))),
	)
	runtime.KeepAlive(buffer)
	return err
}

var _ Library = (*nativeLibrary)(nil)
