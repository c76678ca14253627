// Package datachannel provides Go bindings to libdatachannel, a WebRTC data
// channel and media transport library, loaded at runtime without CGO using
// purego.
//
// Every native resource (PeerConnection, DataChannel, Track) is identified by
// an integer handle. An Engine keeps the handle-to-wrapper registries and
// routes each native notification to the listeners registered on the wrapper.
// A native callback is only enabled while at least one listener for its event
// kind is registered.
//
// For most use cases, call CreatePeerConnection, which loads the library on
// first use. Settings are read from the environment (see Settings). To run
// without the native library, create an Engine over the in-process backend in
// the pionrtc package:
//
//	engine := datachannel.NewEngine(pionrtc.New())
//	pc, err := engine.CreatePeerConnection(datachannel.Configuration{})
//
// Close releases a resource and everything it owns. It is idempotent and may
// be called from inside a listener.
package datachannel
