package session

// State is the connection state of a Session
type State int32

const (
	StateDisconnected State = iota // initial
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// DisconnectReason tells which trigger ran the teardown
type DisconnectReason int

const (
	ReasonUserRequested DisconnectReason = iota
	ReasonDeviceRemoved
	ReasonReadFault
	ReasonWriteFault
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonUserRequested:
		return "user-requested"
	case ReasonDeviceRemoved:
		return "device-removed"
	case ReasonReadFault:
		return "read-fault"
	case ReasonWriteFault:
		return "write-fault"
	default:
		return "unknown"
	}
}

// Message is the user-visible text announcing a disconnect
func (r DisconnectReason) Message() string {
	switch r {
	case ReasonUserRequested:
		return "Disconnected from serial port"
	case ReasonDeviceRemoved:
		return "Device removed"
	case ReasonReadFault:
		return "Connection lost while reading"
	case ReasonWriteFault:
		return "Connection lost while writing"
	default:
		return "Disconnected"
	}
}

// LineKind classifies a line handed to the Sink
type LineKind int

const (
	KindIncoming LineKind = iota
	KindOutgoing
	KindInfo
	KindError
	KindSuccess
)

func (k LineKind) String() string {
	switch k {
	case KindIncoming:
		return "incoming"
	case KindOutgoing:
		return "outgoing"
	case KindInfo:
		return "info"
	case KindError:
		return "error"
	case KindSuccess:
		return "success"
	default:
		return "unknown"
	}
}
