package packet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sensebridge/go-sense-server/internal/sense"
	"github.com/sensebridge/go-sense-server/internal/wire"
)

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

// every constructible value of the closed kind set
var allValues = []Packet{
	InquiryCommand{},
	InquiryResponse{Value: 0x01},
	InquiryAck{},
	MacCommand{},
	MacResponse{MAC: "777AF9BF"},
	MacAck{},
	VersionCommand{},
	VersionResponse{Firmware: "0.0.0.30", Hardware: "V1.4", HardwareType: "Dongle", Magic: "UD3U"},
	VersionAck{},
	SensorCountCommand{},
	SensorCountResponse{Count: 5},
	SensorCountAck{},
	SensorListCommand{Count: 5},
	SensorListResponse{MAC: "ABCDEF01"},
	SensorListAck{},
	AuthCommand{Completion: AuthDone},
	AuthResponse{},
	AuthAck{},
}

// TestRoundTrip checks decode(encode(v)) == v for every value.
func TestRoundTrip(t *testing.T) {
	r := mustRegistry(t)
	for _, v := range allValues {
		t.Run(Name(v), func(t *testing.T) {
			id, _, payload := r.Encode(v)
			got, err := r.Decode(id, v.Role() == sense.Ack, payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != v {
				t.Fatalf("round trip mismatch\n got  %#v\n want %#v", got, v)
			}
		})
	}
}

func TestEncode_Identifiers(t *testing.T) {
	r := mustRegistry(t)
	tests := []struct {
		p        Packet
		id       byte
		sync     sense.SyncClass
		payload  []byte
	}{
		{InquiryCommand{}, 0x27, sense.Sync, nil},
		{InquiryResponse{Value: 2}, 0x28, sense.Sync, []byte{2}},
		{InquiryAck{}, 0x27, sense.Sync, nil}, // acks reference the command id
		{MacCommand{}, 0x04, sense.Sync, nil},
		{MacResponse{MAC: "777AF9BF"}, 0x05, sense.Sync, []byte("777AF9BF")},
		{VersionCommand{}, 0x16, sense.Async, nil},
		{SensorCountResponse{Count: 3}, 0x2F, sense.Async, []byte{3}},
		{SensorListCommand{Count: 3}, 0x30, sense.Async, []byte{3}},
		{SensorListResponse{MAC: "ABCDEF01"}, 0x31, sense.Async, []byte("ABCDEF01")},
		{AuthCommand{Completion: AuthDone}, 0x14, sense.Async, []byte{0xFF}},
		{AuthResponse{}, 0x15, sense.Async, nil},
		{SensorCountAck{}, 0x2E, sense.Async, nil},
	}
	for _, tc := range tests {
		id, sync, payload := r.Encode(tc.p)
		if id != tc.id || sync != tc.sync || !bytes.Equal(payload, tc.payload) {
			t.Fatalf("%s: got id=0x%02X sync=%v payload=% X, want id=0x%02X sync=%v payload=% X",
				Name(tc.p), id, sync, payload, tc.id, tc.sync, tc.payload)
		}
	}
}

func TestDecode_UnknownCommand(t *testing.T) {
	r := mustRegistry(t)
	for _, id := range []byte{0x00, 0x99, 0xFE} {
		if _, err := r.Decode(id, false, nil); !errors.Is(err, ErrUnknownCommand) {
			t.Fatalf("id=0x%02X: expected ErrUnknownCommand, got %v", id, err)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	r := mustRegistry(t)
	tests := []struct {
		name    string
		id      byte
		payload []byte
	}{
		{"inquiryResponseEmpty", 0x28, nil},
		{"inquiryResponseLong", 0x28, []byte{1, 2}},
		{"inquiryCommandNonEmpty", 0x27, []byte{1}},
		{"macResponseBadUTF8", 0x05, []byte{0xFF, 0xFE, 0xFD}},
		{"versionTooFewFields", 0x17, []byte("0.0.0.30 V1.4 Dongle")},
		{"versionTooManyFields", 0x17, []byte("0.0.0.30 V1.4 Dongle UD3U extra")},
		{"versionBadUTF8", 0x17, []byte{0x80, 0x80}},
		{"sensorCountResponseEmpty", 0x2F, nil},
		{"sensorListCommandEmpty", 0x30, nil},
		{"authCommandEmpty", 0x14, nil},
		{"authResponseNonEmpty", 0x15, []byte{1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Decode(tc.id, false, tc.payload); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

// TestDecode_AckOnEitherIdentifier: the ack sentinel forces the Ack
// shape whichever table matched the identifier.
func TestDecode_AckOnEitherIdentifier(t *testing.T) {
	r := mustRegistry(t)
	for _, id := range []byte{0x2E, 0x2F} {
		p, err := r.Decode(id, true, nil)
		if err != nil {
			t.Fatalf("id=0x%02X: %v", id, err)
		}
		if _, ok := p.(SensorCountAck); !ok {
			t.Fatalf("id=0x%02X: got %T, want SensorCountAck", id, p)
		}
	}
}

// TestDecode_CommandTableFirst: identifiers are disjoint by construction,
// so the lookup order is only observable through role assignment.
func TestDecode_RoleFollowsTable(t *testing.T) {
	r := mustRegistry(t)
	p, err := r.Decode(0x30, false, []byte{7})
	if err != nil {
		t.Fatalf("decode command: %v", err)
	}
	if c, ok := p.(SensorListCommand); !ok || c.Count != 7 {
		t.Fatalf("got %#v, want SensorListCommand{7}", p)
	}
	p, err = r.Decode(0x31, false, []byte("01234567"))
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rsp, ok := p.(SensorListResponse); !ok || rsp.MAC != "01234567" {
		t.Fatalf("got %#v, want SensorListResponse", p)
	}
}

// TestFrame_WireBytes checks the full packet→frame→wire path against
// known captures.
func TestFrame_WireBytes(t *testing.T) {
	r := mustRegistry(t)
	codec := wire.Codec{}
	tests := []struct {
		name string
		p    Packet
		dir  sense.Direction
		want []byte
	}{
		{"authResponse", AuthResponse{}, sense.BridgeToHost,
			[]byte{0x55, 0xAA, 0x53, 0x03, 0x15, 0x01, 0x6A}},
		{"sensorCountAck", SensorCountAck{}, sense.BridgeToHost,
			[]byte{0x55, 0xAA, 0x53, 0x2E, 0xFF, 0x02, 0x7F}},
		{"inquiryCommand", InquiryCommand{}, sense.HostToBridge,
			[]byte{0xAA, 0x55, 0x43, 0x03, 0x27, 0x01, 0x6C}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fr, err := r.Frame(tc.p, tc.dir)
			if err != nil {
				t.Fatalf("frame: %v", err)
			}
			got := codec.Encode(fr)
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("wire mismatch\n got  % X\n want % X", got, tc.want)
			}
			// and back through the scanner + registry
			res, _ := wire.Scan(got)
			if res.Status != wire.StatusFrame {
				t.Fatalf("scan: %v", res.Err)
			}
			back, err := r.DecodeFrame(&res.Frame)
			if err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			if back != tc.p {
				t.Fatalf("frame round trip mismatch: got %#v want %#v", back, tc.p)
			}
		})
	}
}

func TestFrame_OversizePayload(t *testing.T) {
	r := mustRegistry(t)
	big := make([]byte, sense.MaxPayload+1)
	for i := range big {
		big[i] = 'A'
	}
	if _, err := r.Frame(MacResponse{MAC: string(big)}, sense.BridgeToHost); err == nil {
		t.Fatalf("expected oversize error")
	}
}

func TestRegistry_DuplicateIdentifier(t *testing.T) {
	dup := &kindSpec{name: "dup", cmdID: 0x27, rspID: 0x99, sync: sense.Sync, decode: decodeInquiry}
	if _, err := newRegistry(append(append([]*kindSpec{}, kinds...), dup)); err == nil {
		t.Fatalf("expected duplicate identifier error")
	}
	// Collision across columns (cmd id reusing an existing rsp id) is also fatal.
	cross := &kindSpec{name: "cross", cmdID: 0x28, rspID: 0x98, sync: sense.Sync, decode: decodeInquiry}
	if _, err := newRegistry(append(append([]*kindSpec{}, kinds...), cross)); err == nil {
		t.Fatalf("expected cross-column collision error")
	}
}

func TestRegistry_AckSentinelIdentifier(t *testing.T) {
	bad := &kindSpec{name: "bad", cmdID: sense.AckSentinel, rspID: 0x97, sync: sense.Sync, decode: decodeInquiry}
	if _, err := newRegistry([]*kindSpec{bad}); err == nil {
		t.Fatalf("expected reserved identifier error")
	}
}
