//go:build !ios && !android && (amd64 || arm64)

// Package platform provides platform details needed to locate and call
// libdatachannel.
package platform

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Is64Bit indicates whether the platform is 64-bit.
// Only 64-bit platforms are supported due to purego limitations.
const Is64Bit = unsafe.Sizeof(uintptr(0)) == 8

// LibraryExtension is the file extension for shared libraries on this platform.
var LibraryExtension string

// LibraryPrefix is the prefix for shared library names on this platform.
var LibraryPrefix string

func init() {
	switch runtime.GOOS {
	case "darwin":
		LibraryExtension = ".dylib"
		LibraryPrefix = "lib"
	case "windows":
		LibraryExtension = ".dll"
		LibraryPrefix = ""
	default: // linux, freebsd, etc.
		LibraryExtension = ".so"
		LibraryPrefix = "lib"
	}
}

// FormatLibraryName returns the platform-specific library filename.
// An empty version returns the unversioned name. Windows builds of
// libdatachannel are not versioned, so the version is ignored there.
//
// Examples:
//   - Linux:   FormatLibraryName("datachannel", "0.22") -> "libdatachannel.so.0.22"
//   - macOS:   FormatLibraryName("datachannel", "0.22") -> "libdatachannel.0.22.dylib"
//   - Windows: FormatLibraryName("datachannel", "0.22") -> "datachannel.dll"
func FormatLibraryName(name, version string) string {
	switch runtime.GOOS {
	case "darwin":
		if version != "" {
			return fmt.Sprintf("%s%s.%s%s", LibraryPrefix, name, version, LibraryExtension)
		}
		return fmt.Sprintf("%s%s%s", LibraryPrefix, name, LibraryExtension)
	case "windows":
		return fmt.Sprintf("%s%s%s", LibraryPrefix, name, LibraryExtension)
	default: // linux, freebsd
		if version != "" {
			return fmt.Sprintf("%s%s%s.%s", LibraryPrefix, name, LibraryExtension, version)
		}
		return fmt.Sprintf("%s%s%s", LibraryPrefix, name, LibraryExtension)
	}
}

// GOOS returns the current operating system.
func GOOS() string {
	return runtime.GOOS
}
