package bindings

import "errors"

// ErrNotLoaded is returned when libdatachannel functions are called before Load().
var ErrNotLoaded = errors.New("datachannel: libdatachannel not loaded; call datachannel.Init() first")

// ErrLibraryNotFound is returned when libdatachannel cannot be found.
var ErrLibraryNotFound = errors.New("datachannel: libdatachannel not found")
