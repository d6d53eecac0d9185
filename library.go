package projfs

// Library is the set of native entry points of the projected
// file system engine used by a projection.
//
// Failures of the native calls are reported as HResult.
type Library interface {
	// AllocateAlignedBuffer allocates a buffer suitable for
	// WriteFileData, returning nil when out of memory.
	AllocateAlignedBuffer(vctx VirtualizationContext, size int) []byte

	// FreeAlignedBuffer frees a buffer from AllocateAlignedBuffer.
	FreeAlignedBuffer(buffer []byte)

	// FileNameCompare orders two NUL terminated names the way the
	// host does, returning a negative, zero or positive integer.
	FileNameCompare(name1, name2 []uint16) int

	// FileNameMatch checks the NUL terminated name against the NUL
	// terminated pattern with the wildcards of the host.
	FileNameMatch(name, pattern []uint16) bool

	MarkDirectoryAsPlaceholder(
		rootPath, targetPath string,
		versionInfo *PlaceholderVersionInfo,
		instanceID GUID,
	) error

	// StartVirtualizing starts delivering the requests of the host
	// for the root to the callbacks.
	StartVirtualizing(
		rootPath string, callbacks Callbacks, options *StartOptions,
	) (VirtualizationContext, error)

	// StopVirtualizing returns after every callback in flight has
	// returned, no callback is delivered afterwards.
	StopVirtualizing(vctx VirtualizationContext)

	FillDirEntryBuffer(
		name []uint16, info *FileBasicInfo, buffer DirEntryBufferHandle,
	) error

	WritePlaceholderInfo(
		vctx VirtualizationContext,
		destinationFileName []uint16,
		info *PlaceholderInfo,
	) error

	WriteFileData(
		vctx VirtualizationContext, dataStreamID GUID,
		buffer []byte, byteOffset uint64,
	) error
}

// Callbacks is the table of callbacks of a running virtualization.
//
// Every callback answers the host with an HResult. The debug name
// of each one is the name of the native callback.
type Callbacks interface {
	StartDirectoryEnumeration(data *CallbackData, enumerationID GUID) HResult
	EndDirectoryEnumeration(data *CallbackData, enumerationID GUID) HResult
	GetDirectoryEnumeration(
		data *CallbackData, enumerationID GUID,
		searchExpression string, buffer DirEntryBufferHandle,
	) HResult
	GetPlaceholderInfo(data *CallbackData) HResult
	GetFileData(data *CallbackData, byteOffset uint64, length uint32) HResult
	QueryFileName(data *CallbackData) HResult
	Notification(
		data *CallbackData, isDirectory bool, kind NotificationKind,
		destinationFileName string, params *NotificationParameters,
	) HResult
}

// Strategy selects how the native library is located.
type Strategy int

const (
	// DynamicResolution loads the library explicitly from the
	// system directory and resolves every entry point once,
	// reporting a missing feature at Resolve.
	DynamicResolution Strategy = iota

	// StaticBinding binds the entry points lazily, so a missing
	// feature only surfaces when an entry point is first called.
	StaticBinding
)

func (s Strategy) String() string {
	if s == StaticBinding {
		return "StaticBinding"
	}
	return "DynamicResolution"
}

// Resolve locates the native library with the strategy.
//
// ErrFeatureNotEnabled is returned when the optional feature of
// the operating system is not enabled, and ErrUnsupportedPlatform
// outside of Windows.
func Resolve(strategy Strategy) (Library, error) {
	return resolveLibrary(strategy)
}
