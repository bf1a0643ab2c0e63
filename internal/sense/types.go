package sense

// Direction tells which side of the link emitted a frame. It is derived
// solely from the 2-byte orientation marker that was matched.
type Direction uint8

const (
	BridgeToHost Direction = iota // marker 0x55 0xAA
	HostToBridge                  // marker 0xAA 0x55
)

func (d Direction) String() string {
	if d == HostToBridge {
		return "host_to_bridge"
	}
	return "bridge_to_host"
}

// Marker returns the on-wire orientation marker for the direction.
func (d Direction) Marker() [2]byte {
	if d == HostToBridge {
		return [2]byte{0xAA, 0x55}
	}
	return [2]byte{0x55, 0xAA}
}

// SyncClass is the frame type byte. The two values are parallel command
// namespaces; they carry no blocking semantics.
type SyncClass byte

const (
	Sync  SyncClass = 0x43
	Async SyncClass = 0x53
)

func (c SyncClass) String() string {
	if c == Sync {
		return "sync"
	}
	return "async"
}

// Role classifies a payload shape within a packet kind.
type Role uint8

const (
	Command Role = iota
	Response
	Ack
)

func (r Role) String() string {
	switch r {
	case Command:
		return "command"
	case Response:
		return "response"
	default:
		return "ack"
	}
}

// AckSentinel in field B marks an acknowledgement frame. Field A then
// carries the acknowledged command identifier and the effective declared
// length is fixed at 3. A consequence of this encoding is that 0xFF can
// never be a real command or response identifier.
const AckSentinel = 0xFF

// MaxPayload is the largest payload a frame can carry: the declared
// length is one byte and counts the identifier plus two checksum bytes.
const MaxPayload = 0xFF - 3

// Frame is one validated on-wire unit and the in-memory currency of the
// bridge: backends produce it, the hub fans it out, the relay server
// re-encodes it. Only the first Len bytes of Data are valid.
//
// For acknowledgement frames (Ack true) ID holds the acknowledged
// command identifier and the payload is always empty.
type Frame struct {
	Dir  Direction
	Sync SyncClass
	ID   byte
	Ack  bool
	Len  uint8
	Data [MaxPayload]byte
}

// Payload returns the valid payload bytes. The slice aliases the frame's
// backing array; copy before retaining.
func (f *Frame) Payload() []byte { return f.Data[:f.Len] }

// SetPayload copies p into the frame, truncating at MaxPayload.
func (f *Frame) SetPayload(p []byte) { f.Len = uint8(copy(f.Data[:], p)) }
