package datachannel

// Event payloads delivered to listeners. Payloads are values decoded once at
// the dispatch bridge; listeners never see raw native codes.

// LocalDescriptionEvent reports that the local description has been set.
type LocalDescriptionEvent struct {
	Peer *PeerConnection
	SDP  string
	Type DescriptionType
}

// LocalCandidateEvent reports a newly gathered local ICE candidate.
type LocalCandidateEvent struct {
	Peer      *PeerConnection
	Candidate string
	Mid       string
}

// StateChangeEvent reports a PeerConnection state change.
type StateChangeEvent struct {
	Peer  *PeerConnection
	State PeerState
}

// IceStateChangeEvent reports an ICE state change.
type IceStateChangeEvent struct {
	Peer  *PeerConnection
	State IceState
}

// GatheringStateChangeEvent reports an ICE gathering state change.
type GatheringStateChangeEvent struct {
	Peer  *PeerConnection
	State GatheringState
}

// SignalingStateChangeEvent reports a signaling state change.
type SignalingStateChangeEvent struct {
	Peer  *PeerConnection
	State SignalingState
}

// DataChannelEvent announces a data channel opened by the remote peer.
type DataChannelEvent struct {
	Peer    *PeerConnection
	Channel *DataChannel
}

// TrackEvent announces a track, or reports that a track opened or closed.
type TrackEvent struct {
	Peer  *PeerConnection
	Track *Track
}

// ChannelEvent reports a data channel transition (open, closed, buffered
// amount low, messages available).
type ChannelEvent struct {
	Channel *DataChannel
}

// ChannelErrorEvent reports a data channel error.
type ChannelErrorEvent struct {
	Channel *DataChannel
	Message string
}

// MessageEvent carries a message received on a data channel.
// Data is owned by the listeners; it is not reused by the library.
type MessageEvent struct {
	Channel *DataChannel
	Data    []byte
	Binary  bool
}

// Text returns the message as a string.
func (m MessageEvent) Text() string {
	return string(m.Data)
}

// TrackErrorEvent reports a track error.
type TrackErrorEvent struct {
	Track   *Track
	Message string
}

// TrackMessageEvent carries a media packet received on a track.
type TrackMessageEvent struct {
	Track *Track
	Data  []byte
}
