// Package packet maps wire identifiers to typed packet values. The kind
// set is closed: every identifier the bridge speaks is listed here, and
// each kind contributes one type per role (command, response, ack).
package packet

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sensebridge/go-sense-server/internal/sense"
)

// Sentinel errors callers classify with errors.Is. Both are recoverable:
// the frame is skipped and scanning continues.
var (
	ErrUnknownCommand = errors.New("packet: unknown command identifier")
	ErrMalformed      = errors.New("packet: malformed payload")
)

// Packet is one decoded payload shape.
type Packet interface {
	Role() sense.Role
	// spec links a value back to its kind entry; keeping it unexported
	// seals the interface to this package.
	spec() *kindSpec
	// payload packs the role-specific fields, the inverse of the kind's
	// decode func.
	payload() []byte
}

// kindSpec describes one packet kind: its stable identifier pair, the
// type-byte namespace it lives in, and the payload decoder for all three
// roles.
type kindSpec struct {
	name   string
	cmdID  byte
	rspID  byte
	sync   sense.SyncClass
	decode func(role sense.Role, payload []byte) (Packet, error)
}

var (
	inquirySpec     = &kindSpec{name: "inquiry", cmdID: 0x27, rspID: 0x28, sync: sense.Sync}
	macSpec         = &kindSpec{name: "mac", cmdID: 0x04, rspID: 0x05, sync: sense.Sync}
	versionSpec     = &kindSpec{name: "version", cmdID: 0x16, rspID: 0x17, sync: sense.Async}
	sensorCountSpec = &kindSpec{name: "sensor_count", cmdID: 0x2E, rspID: 0x2F, sync: sense.Async}
	sensorListSpec  = &kindSpec{name: "sensor_list", cmdID: 0x30, rspID: 0x31, sync: sense.Async}
	authSpec        = &kindSpec{name: "auth", cmdID: 0x14, rspID: 0x15, sync: sense.Async}
)

// The decode funcs refer back to their spec vars, so wiring them in the
// composite literals above would be an initialization cycle.
func init() {
	inquirySpec.decode = decodeInquiry
	macSpec.decode = decodeMac
	versionSpec.decode = decodeVersion
	sensorCountSpec.decode = decodeSensorCount
	sensorListSpec.decode = decodeSensorList
	authSpec.decode = decodeAuth
}

// kinds is the closed set. Identifiers are never repurposed; new kinds
// append here.
var kinds = []*kindSpec{
	inquirySpec,
	macSpec,
	versionSpec,
	sensorCountSpec,
	sensorListSpec,
	authSpec,
}

// Name reports the kind and role of a packet for logging, e.g.
// "sensor_count/response".
func Name(p Packet) string {
	return p.spec().name + "/" + p.Role().String()
}

// Auth completion values.
const (
	AuthBlinking byte = 0x00 // pairing LED keeps blinking
	AuthDone     byte = 0xFF // pairing complete
)

// Inquiry probes bridge readiness.

type InquiryCommand struct{}

func (InquiryCommand) Role() sense.Role { return sense.Command }
func (InquiryCommand) spec() *kindSpec  { return inquirySpec }
func (InquiryCommand) payload() []byte  { return nil }

type InquiryResponse struct{ Value byte }

func (InquiryResponse) Role() sense.Role  { return sense.Response }
func (InquiryResponse) spec() *kindSpec   { return inquirySpec }
func (p InquiryResponse) payload() []byte { return []byte{p.Value} }

type InquiryAck struct{}

func (InquiryAck) Role() sense.Role { return sense.Ack }
func (InquiryAck) spec() *kindSpec  { return inquirySpec }
func (InquiryAck) payload() []byte  { return nil }

func decodeInquiry(role sense.Role, payload []byte) (Packet, error) {
	switch role {
	case sense.Command:
		if err := wantEmpty(inquirySpec, role, payload); err != nil {
			return nil, err
		}
		return InquiryCommand{}, nil
	case sense.Response:
		if err := wantLen(inquirySpec, role, payload, 1); err != nil {
			return nil, err
		}
		return InquiryResponse{Value: payload[0]}, nil
	default:
		return InquiryAck{}, nil
	}
}

// Mac reports the bridge's own MAC, an 8-character ASCII string.

type MacCommand struct{}

func (MacCommand) Role() sense.Role { return sense.Command }
func (MacCommand) spec() *kindSpec  { return macSpec }
func (MacCommand) payload() []byte  { return nil }

type MacResponse struct{ MAC string }

func (MacResponse) Role() sense.Role  { return sense.Response }
func (MacResponse) spec() *kindSpec   { return macSpec }
func (p MacResponse) payload() []byte { return []byte(p.MAC) }

type MacAck struct{}

func (MacAck) Role() sense.Role { return sense.Ack }
func (MacAck) spec() *kindSpec  { return macSpec }
func (MacAck) payload() []byte  { return nil }

func decodeMac(role sense.Role, payload []byte) (Packet, error) {
	switch role {
	case sense.Command:
		if err := wantEmpty(macSpec, role, payload); err != nil {
			return nil, err
		}
		return MacCommand{}, nil
	case sense.Response:
		s, err := wantText(macSpec, role, payload)
		if err != nil {
			return nil, err
		}
		return MacResponse{MAC: s}, nil
	default:
		return MacAck{}, nil
	}
}

// Version reports firmware/hardware identification as four space-joined
// text fields.

type VersionCommand struct{}

func (VersionCommand) Role() sense.Role { return sense.Command }
func (VersionCommand) spec() *kindSpec  { return versionSpec }
func (VersionCommand) payload() []byte  { return nil }

type VersionResponse struct {
	Firmware     string
	Hardware     string
	HardwareType string
	Magic        string
}

func (VersionResponse) Role() sense.Role { return sense.Response }
func (VersionResponse) spec() *kindSpec  { return versionSpec }
func (p VersionResponse) payload() []byte {
	return []byte(strings.Join([]string{p.Firmware, p.Hardware, p.HardwareType, p.Magic}, " "))
}

type VersionAck struct{}

func (VersionAck) Role() sense.Role { return sense.Ack }
func (VersionAck) spec() *kindSpec  { return versionSpec }
func (VersionAck) payload() []byte  { return nil }

func decodeVersion(role sense.Role, payload []byte) (Packet, error) {
	switch role {
	case sense.Command:
		if err := wantEmpty(versionSpec, role, payload); err != nil {
			return nil, err
		}
		return VersionCommand{}, nil
	case sense.Response:
		s, err := wantText(versionSpec, role, payload)
		if err != nil {
			return nil, err
		}
		fields := strings.Split(s, " ")
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: version response wants 4 fields, got %d", ErrMalformed, len(fields))
		}
		return VersionResponse{
			Firmware:     fields[0],
			Hardware:     fields[1],
			HardwareType: fields[2],
			Magic:        fields[3],
		}, nil
	default:
		return VersionAck{}, nil
	}
}

// SensorCount reports how many sensors are bound to the bridge.

type SensorCountCommand struct{}

func (SensorCountCommand) Role() sense.Role { return sense.Command }
func (SensorCountCommand) spec() *kindSpec  { return sensorCountSpec }
func (SensorCountCommand) payload() []byte  { return nil }

type SensorCountResponse struct{ Count byte }

func (SensorCountResponse) Role() sense.Role  { return sense.Response }
func (SensorCountResponse) spec() *kindSpec   { return sensorCountSpec }
func (p SensorCountResponse) payload() []byte { return []byte{p.Count} }

type SensorCountAck struct{}

func (SensorCountAck) Role() sense.Role { return sense.Ack }
func (SensorCountAck) spec() *kindSpec  { return sensorCountSpec }
func (SensorCountAck) payload() []byte  { return nil }

func decodeSensorCount(role sense.Role, payload []byte) (Packet, error) {
	switch role {
	case sense.Command:
		if err := wantEmpty(sensorCountSpec, role, payload); err != nil {
			return nil, err
		}
		return SensorCountCommand{}, nil
	case sense.Response:
		if err := wantLen(sensorCountSpec, role, payload, 1); err != nil {
			return nil, err
		}
		return SensorCountResponse{Count: payload[0]}, nil
	default:
		return SensorCountAck{}, nil
	}
}

// SensorList walks the bound sensor table: the command asks for count
// entries, the bridge answers with one response per sensor MAC.

type SensorListCommand struct{ Count byte }

func (SensorListCommand) Role() sense.Role  { return sense.Command }
func (SensorListCommand) spec() *kindSpec   { return sensorListSpec }
func (p SensorListCommand) payload() []byte { return []byte{p.Count} }

type SensorListResponse struct{ MAC string }

func (SensorListResponse) Role() sense.Role  { return sense.Response }
func (SensorListResponse) spec() *kindSpec   { return sensorListSpec }
func (p SensorListResponse) payload() []byte { return []byte(p.MAC) }

type SensorListAck struct{}

func (SensorListAck) Role() sense.Role { return sense.Ack }
func (SensorListAck) spec() *kindSpec  { return sensorListSpec }
func (SensorListAck) payload() []byte  { return nil }

func decodeSensorList(role sense.Role, payload []byte) (Packet, error) {
	switch role {
	case sense.Command:
		if err := wantLen(sensorListSpec, role, payload, 1); err != nil {
			return nil, err
		}
		return SensorListCommand{Count: payload[0]}, nil
	case sense.Response:
		s, err := wantText(sensorListSpec, role, payload)
		if err != nil {
			return nil, err
		}
		return SensorListResponse{MAC: s}, nil
	default:
		return SensorListAck{}, nil
	}
}

// Auth finishes pairing; completion AuthDone stops the pairing LED.

type AuthCommand struct{ Completion byte }

func (AuthCommand) Role() sense.Role  { return sense.Command }
func (AuthCommand) spec() *kindSpec   { return authSpec }
func (p AuthCommand) payload() []byte { return []byte{p.Completion} }

type AuthResponse struct{}

func (AuthResponse) Role() sense.Role { return sense.Response }
func (AuthResponse) spec() *kindSpec  { return authSpec }
func (AuthResponse) payload() []byte  { return nil }

type AuthAck struct{}

func (AuthAck) Role() sense.Role { return sense.Ack }
func (AuthAck) spec() *kindSpec  { return authSpec }
func (AuthAck) payload() []byte  { return nil }

func decodeAuth(role sense.Role, payload []byte) (Packet, error) {
	switch role {
	case sense.Command:
		if err := wantLen(authSpec, role, payload, 1); err != nil {
			return nil, err
		}
		return AuthCommand{Completion: payload[0]}, nil
	case sense.Response:
		if err := wantEmpty(authSpec, role, payload); err != nil {
			return nil, err
		}
		return AuthResponse{}, nil
	default:
		return AuthAck{}, nil
	}
}

func wantEmpty(k *kindSpec, role sense.Role, payload []byte) error {
	if len(payload) != 0 {
		return fmt.Errorf("%w: %s/%s wants empty payload, got %d bytes",
			ErrMalformed, k.name, role, len(payload))
	}
	return nil
}

func wantLen(k *kindSpec, role sense.Role, payload []byte, n int) error {
	if len(payload) != n {
		return fmt.Errorf("%w: %s/%s wants %d bytes, got %d",
			ErrMalformed, k.name, role, n, len(payload))
	}
	return nil
}

func wantText(k *kindSpec, role sense.Role, payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", fmt.Errorf("%w: %s/%s payload is not valid UTF-8", ErrMalformed, k.name, role)
	}
	return string(payload), nil
}
