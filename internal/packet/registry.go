package packet

import (
	"fmt"

	"github.com/sensebridge/go-sense-server/internal/sense"
)

// Registry resolves wire identifiers to packet kinds. It is immutable
// after construction; a single instance serves the whole process.
type Registry struct {
	byCmd map[byte]*kindSpec
	byRsp map[byte]*kindSpec
}

// New builds a registry over the closed kind set. Duplicate identifiers
// and identifiers colliding with the ack sentinel are programming errors
// in the kind table, surfaced here, before any traffic is processed.
func New() (*Registry, error) { return newRegistry(kinds) }

// MustNew is New for call sites that cannot meaningfully recover; the
// kind table is compiled in, so failure means the binary itself is broken.
func MustNew() *Registry {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

func newRegistry(list []*kindSpec) (*Registry, error) {
	r := &Registry{
		byCmd: make(map[byte]*kindSpec, len(list)),
		byRsp: make(map[byte]*kindSpec, len(list)),
	}
	for _, k := range list {
		for _, id := range [2]byte{k.cmdID, k.rspID} {
			if id == sense.AckSentinel {
				return nil, fmt.Errorf("packet: kind %s uses reserved identifier 0x%02X", k.name, id)
			}
			if prev, ok := r.byCmd[id]; ok {
				return nil, fmt.Errorf("packet: identifier 0x%02X of kind %s already used by %s", id, k.name, prev.name)
			}
			if prev, ok := r.byRsp[id]; ok {
				return nil, fmt.Errorf("packet: identifier 0x%02X of kind %s already used by %s", id, k.name, prev.name)
			}
		}
		r.byCmd[k.cmdID] = k
		r.byRsp[k.rspID] = k
	}
	return r, nil
}

// Decode resolves an identifier and decodes the payload into a typed
// packet. The command table is consulted first, then the response table;
// the matched column fixes the role unless ack is set, in which case the
// kind's Ack shape is produced. Unknown identifiers yield
// ErrUnknownCommand, undecodable payloads ErrMalformed; both are
// recoverable.
func (r *Registry) Decode(id byte, ack bool, payload []byte) (Packet, error) {
	var (
		k    *kindSpec
		role sense.Role
	)
	if c, ok := r.byCmd[id]; ok {
		k, role = c, sense.Command
	} else if s, ok := r.byRsp[id]; ok {
		k, role = s, sense.Response
	} else {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, id)
	}
	if ack {
		role = sense.Ack
	}
	return k.decode(role, payload)
}

// DecodeFrame dispatches one validated frame.
func (r *Registry) DecodeFrame(f *sense.Frame) (Packet, error) {
	return r.Decode(f.ID, f.Ack, f.Payload())
}

// Encode returns the wire identifier, sync class and payload for p.
// Responses carry the kind's response identifier; commands and acks both
// reference the command identifier.
func (r *Registry) Encode(p Packet) (id byte, sync sense.SyncClass, payload []byte) {
	k := p.spec()
	if p.Role() == sense.Response {
		id = k.rspID
	} else {
		id = k.cmdID
	}
	return id, k.sync, p.payload()
}

// Frame builds a complete wire frame carrying p in the given direction.
func (r *Registry) Frame(p Packet, dir sense.Direction) (sense.Frame, error) {
	id, sync, payload := r.Encode(p)
	if len(payload) > sense.MaxPayload {
		return sense.Frame{}, fmt.Errorf("packet: %s payload %d bytes exceeds frame limit %d",
			Name(p), len(payload), sense.MaxPayload)
	}
	f := sense.Frame{Dir: dir, Sync: sync, ID: id, Ack: p.Role() == sense.Ack}
	if !f.Ack {
		f.SetPayload(payload)
	}
	return f, nil
}
