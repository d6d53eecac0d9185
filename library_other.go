//go:build !windows

package projfs

func resolveLibrary(Strategy) (Library, error) {
	return nil, ErrUnsupportedPlatform
}
