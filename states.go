package datachannel

import "fmt"

// PeerState is the state of a PeerConnection (rtcState).
type PeerState int32

const (
	PeerStateNew          PeerState = 0
	PeerStateConnecting   PeerState = 1
	PeerStateConnected    PeerState = 2
	PeerStateDisconnected PeerState = 3
	PeerStateFailed       PeerState = 4
	PeerStateClosed       PeerState = 5
)

// String returns the state name.
func (s PeerState) String() string {
	switch s {
	case PeerStateNew:
		return "new"
	case PeerStateConnecting:
		return "connecting"
	case PeerStateConnected:
		return "connected"
	case PeerStateDisconnected:
		return "disconnected"
	case PeerStateFailed:
		return "failed"
	case PeerStateClosed:
		return "closed"
	}
	return fmt.Sprintf("PeerState(%d)", int32(s))
}

func decodePeerState(code int32) (PeerState, bool) {
	s := PeerState(code)
	return s, s >= PeerStateNew && s <= PeerStateClosed
}

// IceState is the ICE state of a PeerConnection (rtcIceState).
type IceState int32

const (
	IceStateNew          IceState = 0
	IceStateChecking     IceState = 1
	IceStateConnected    IceState = 2
	IceStateCompleted    IceState = 3
	IceStateFailed       IceState = 4
	IceStateDisconnected IceState = 5
	IceStateClosed       IceState = 6
)

// String returns the state name.
func (s IceState) String() string {
	switch s {
	case IceStateNew:
		return "new"
	case IceStateChecking:
		return "checking"
	case IceStateConnected:
		return "connected"
	case IceStateCompleted:
		return "completed"
	case IceStateFailed:
		return "failed"
	case IceStateDisconnected:
		return "disconnected"
	case IceStateClosed:
		return "closed"
	}
	return fmt.Sprintf("IceState(%d)", int32(s))
}

func decodeIceState(code int32) (IceState, bool) {
	s := IceState(code)
	return s, s >= IceStateNew && s <= IceStateClosed
}

// GatheringState is the ICE gathering state (rtcGatheringState).
type GatheringState int32

const (
	GatheringStateNew        GatheringState = 0
	GatheringStateInProgress GatheringState = 1
	GatheringStateComplete   GatheringState = 2
)

// String returns the state name.
func (s GatheringState) String() string {
	switch s {
	case GatheringStateNew:
		return "new"
	case GatheringStateInProgress:
		return "in-progress"
	case GatheringStateComplete:
		return "complete"
	}
	return fmt.Sprintf("GatheringState(%d)", int32(s))
}

func decodeGatheringState(code int32) (GatheringState, bool) {
	s := GatheringState(code)
	return s, s >= GatheringStateNew && s <= GatheringStateComplete
}

// SignalingState is the signaling state (rtcSignalingState).
type SignalingState int32

const (
	SignalingStateStable             SignalingState = 0
	SignalingStateHaveLocalOffer     SignalingState = 1
	SignalingStateHaveRemoteOffer    SignalingState = 2
	SignalingStateHaveLocalPranswer  SignalingState = 3
	SignalingStateHaveRemotePranswer SignalingState = 4
)

// String returns the state name.
func (s SignalingState) String() string {
	switch s {
	case SignalingStateStable:
		return "stable"
	case SignalingStateHaveLocalOffer:
		return "have-local-offer"
	case SignalingStateHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingStateHaveLocalPranswer:
		return "have-local-pranswer"
	case SignalingStateHaveRemotePranswer:
		return "have-remote-pranswer"
	}
	return fmt.Sprintf("SignalingState(%d)", int32(s))
}

func decodeSignalingState(code int32) (SignalingState, bool) {
	s := SignalingState(code)
	return s, s >= SignalingStateStable && s <= SignalingStateHaveRemotePranswer
}

// DescriptionType is the type of a session description.
type DescriptionType string

const (
	DescriptionOffer    DescriptionType = "offer"
	DescriptionAnswer   DescriptionType = "answer"
	DescriptionPranswer DescriptionType = "pranswer"
	DescriptionRollback DescriptionType = "rollback"

	// DescriptionAuto lets the native layer pick the type.
	DescriptionAuto DescriptionType = ""
)

func decodeDescriptionType(raw string) (DescriptionType, bool) {
	switch t := DescriptionType(raw); t {
	case DescriptionOffer, DescriptionAnswer, DescriptionPranswer, DescriptionRollback:
		return t, true
	}
	return "", false
}
