//go:build ios || android || !(amd64 || arm64)

package bindings

import (
	"fmt"
	"runtime"

	"github.com/obinnaokechukwu/datachannel/native"
)

// IsLoaded always returns false on unsupported platforms.
func IsLoaded() bool {
	return false
}

// Load fails on unsupported platforms.
func Load(path string) error {
	return fmt.Errorf("%w: unsupported platform %s/%s", ErrLibraryNotFound, runtime.GOOS, runtime.GOARCH)
}

// Library returns nil on unsupported platforms.
func Library() native.Library {
	return nil
}

// LibrarySearchPaths returns no paths on unsupported platforms.
func LibrarySearchPaths() []string {
	return nil
}
