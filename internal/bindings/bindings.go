//go:build !ios && !android && (amd64 || arm64)

// Package bindings handles loading libdatachannel and registering function
// bindings using purego.
package bindings

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/datachannel/internal/platform"
)

// Versions tried when searching for the library, newest first.
var libraryVersions = []string{"0.23", "0.22", "0.21", "0.20"}

var (
	libDataChannel uintptr

	loaded   atomic.Bool
	loadOnce sync.Once
	loadErr  error
)

// IsLoaded returns true if libdatachannel has been successfully loaded.
func IsLoaded() bool {
	return loaded.Load()
}

// Load loads libdatachannel and registers all function bindings. An explicit
// path is tried first; otherwise the platform search paths are used.
// It is safe to call multiple times; only the first call has any effect.
func Load(path string) error {
	loadOnce.Do(func() {
		loadErr = doLoad(path)
		if loadErr == nil {
			loaded.Store(true)
		}
	})
	return loadErr
}

func doLoad(path string) error {
	var err error
	if path != "" {
		libDataChannel, err = tryOpen(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, path, err)
		}
	} else {
		libDataChannel, err = loadLibrary("datachannel", libraryVersions)
		if err != nil {
			return fmt.Errorf("loading libdatachannel: %w", err)
		}
	}
	return register(libDataChannel)
}

// register binds every symbol. purego panics on a missing symbol, which is
// turned into an error so an outdated library fails Load instead of the
// process.
func register(lib uintptr) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: binding symbols: %v", ErrLibraryNotFound, r)
		}
	}()

	purego.RegisterLibFunc(&rtcInitLogger, lib, "rtcInitLogger")
	purego.RegisterLibFunc(&rtcPreload, lib, "rtcPreload")

	purego.RegisterLibFunc(&rtcCreatePeerConnection, lib, "rtcCreatePeerConnection")
	purego.RegisterLibFunc(&rtcClosePeerConnection, lib, "rtcClosePeerConnection")
	purego.RegisterLibFunc(&rtcDeletePeerConnection, lib, "rtcDeletePeerConnection")

	purego.RegisterLibFunc(&rtcSetLocalDescription, lib, "rtcSetLocalDescription")
	purego.RegisterLibFunc(&rtcSetRemoteDescription, lib, "rtcSetRemoteDescription")
	purego.RegisterLibFunc(&rtcAddRemoteCandidate, lib, "rtcAddRemoteCandidate")
	purego.RegisterLibFunc(&rtcGetLocalDescription, lib, "rtcGetLocalDescription")
	purego.RegisterLibFunc(&rtcGetRemoteDescription, lib, "rtcGetRemoteDescription")
	purego.RegisterLibFunc(&rtcGetLocalDescriptionType, lib, "rtcGetLocalDescriptionType")
	purego.RegisterLibFunc(&rtcGetRemoteDescriptionType, lib, "rtcGetRemoteDescriptionType")
	purego.RegisterLibFunc(&rtcGetLocalAddress, lib, "rtcGetLocalAddress")
	purego.RegisterLibFunc(&rtcGetRemoteAddress, lib, "rtcGetRemoteAddress")
	purego.RegisterLibFunc(&rtcGetSelectedCandidatePair, lib, "rtcGetSelectedCandidatePair")
	purego.RegisterLibFunc(&rtcGetMaxDataChannelStream, lib, "rtcGetMaxDataChannelStream")
	purego.RegisterLibFunc(&rtcGetRemoteMaxMessageSize, lib, "rtcGetRemoteMaxMessageSize")

	purego.RegisterLibFunc(&rtcCreateDataChannelEx, lib, "rtcCreateDataChannelEx")
	purego.RegisterLibFunc(&rtcDeleteDataChannel, lib, "rtcDeleteDataChannel")
	purego.RegisterLibFunc(&rtcGetDataChannelStream, lib, "rtcGetDataChannelStream")
	purego.RegisterLibFunc(&rtcGetDataChannelLabel, lib, "rtcGetDataChannelLabel")
	purego.RegisterLibFunc(&rtcGetDataChannelProtocol, lib, "rtcGetDataChannelProtocol")
	purego.RegisterLibFunc(&rtcGetDataChannelReliability, lib, "rtcGetDataChannelReliability")

	purego.RegisterLibFunc(&rtcAddTrack, lib, "rtcAddTrack")
	purego.RegisterLibFunc(&rtcDeleteTrack, lib, "rtcDeleteTrack")
	purego.RegisterLibFunc(&rtcGetTrackMid, lib, "rtcGetTrackMid")
	purego.RegisterLibFunc(&rtcGetTrackDescription, lib, "rtcGetTrackDescription")

	purego.RegisterLibFunc(&rtcClose, lib, "rtcClose")
	purego.RegisterLibFunc(&rtcIsOpen, lib, "rtcIsOpen")
	purego.RegisterLibFunc(&rtcIsClosed, lib, "rtcIsClosed")
	purego.RegisterLibFunc(&rtcSendMessage, lib, "rtcSendMessage")
	purego.RegisterLibFunc(&rtcReceiveMessage, lib, "rtcReceiveMessage")
	purego.RegisterLibFunc(&rtcGetMaxMessageSize, lib, "rtcGetMaxMessageSize")
	purego.RegisterLibFunc(&rtcGetBufferedAmount, lib, "rtcGetBufferedAmount")
	purego.RegisterLibFunc(&rtcSetBufferedAmountLowThreshold, lib, "rtcSetBufferedAmountLowThreshold")
	purego.RegisterLibFunc(&rtcGetAvailableAmount, lib, "rtcGetAvailableAmount")

	for i := range callbackSetters {
		purego.RegisterLibFunc(&callbackSetters[i], lib, "rtcSet"+callbackEvents[i].String()+"Callback")
	}

	rtcPreload()
	return nil
}

// loadLibrary attempts to load a library by trying versioned names.
func loadLibrary(name string, versions []string) (uintptr, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, ver := range versions {
			if lib, err := tryOpen(filepath.Join(searchPath, platform.FormatLibraryName(name, ver))); err == nil {
				return lib, nil
			}
		}
		if lib, err := tryOpen(filepath.Join(searchPath, platform.FormatLibraryName(name, ""))); err == nil {
			return lib, nil
		}
	}

	// Let the system loader search.
	for _, ver := range versions {
		if lib, err := tryOpen(platform.FormatLibraryName(name, ver)); err == nil {
			return lib, nil
		}
	}
	if lib, err := tryOpen(platform.FormatLibraryName(name, "")); err == nil {
		return lib, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

func tryOpen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// FindLibrary searches for libdatachannel and returns its full path.
// This is useful for diagnostics.
func FindLibrary() (string, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, ver := range append(libraryVersions, "") {
			fullPath := filepath.Join(searchPath, platform.FormatLibraryName("datachannel", ver))
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}
	return "", fmt.Errorf("%w: datachannel", ErrLibraryNotFound)
}

// LibrarySearchPaths returns platform-specific library search paths.
func LibrarySearchPaths() []string {
	var paths []string

	switch runtime.GOOS {
	case "linux":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/local/lib",
			"/usr/lib",
			"/lib/x86_64-linux-gnu",
			"/lib",
		)

	case "darwin":
		if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
			paths = append(paths, filepath.SplitList(dyldPath)...)
		}
		paths = append(paths,
			"/opt/homebrew/lib",                    // Apple Silicon
			"/usr/local/lib",                       // Intel
			"/opt/homebrew/opt/libdatachannel/lib", // Homebrew
			"/usr/local/opt/libdatachannel/lib",    // Homebrew (Intel)
		)

	case "windows":
		if winPath := os.Getenv("PATH"); winPath != "" {
			paths = append(paths, filepath.SplitList(winPath)...)
		}
		if exe, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Dir(exe))
		}

	case "freebsd":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/local/lib",
			"/usr/lib",
		)
	}

	return paths
}
