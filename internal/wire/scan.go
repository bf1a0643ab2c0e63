package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sensebridge/go-sense-server/internal/sense"
)

// Frame layout: 2-byte orientation marker, type byte, field A, field B,
// payload, 2-byte big-endian checksum. Field B equal to the ack sentinel
// makes the frame an acknowledgement (field A = acked command id, no
// payload); otherwise field A is the declared length (id byte + payload +
// checksum) and field B is the command/response identifier.
const (
	markerLen    = 2
	headerLen    = markerLen + 3
	checksumLen  = 2
	ackDeclared  = 3
	checksumSeed = 0x00FF // stands in for the marker bytes excluded from the sum
)

var (
	ErrBadType   = errors.New("wire: invalid type byte")
	ErrBadLength = errors.New("wire: invalid declared length")
	ErrChecksum  = errors.New("wire: checksum mismatch")
)

// Status of a single Scan call.
type Status int

const (
	// StatusFrame: a validated frame was extracted.
	StatusFrame Status = iota
	// StatusNoFrame: not enough bytes yet. Keep the unconsumed tail and
	// call again once more input arrives.
	StatusNoFrame
	// StatusInvalid: a candidate frame failed validation. Discard the
	// consumed bytes and resume scanning on the remainder.
	StatusInvalid
)

// Result of scanning a buffer for one frame.
type Result struct {
	Status Status
	Frame  sense.Frame // set when Status == StatusFrame
	Err    error       // set when Status == StatusInvalid
	// Checksum diagnostics, set on checksum mismatch.
	WantSum uint16 // value carried on the wire
	GotSum  uint16 // value computed over the frame
}

var (
	markerB2H = [2]byte{0x55, 0xAA}
	markerH2B = [2]byte{0xAA, 0x55}
)

// indexMarker returns the offset of the first orientation marker in b,
// either polarity, or -1.
func indexMarker(b []byte) int {
	i := bytes.Index(b, markerB2H[:])
	j := bytes.Index(b, markerH2B[:])
	switch {
	case i < 0:
		return j
	case j < 0:
		return i
	case j < i:
		return j
	default:
		return i
	}
}

// Scan searches buf for the next well-formed frame and returns the scan
// result plus the number of leading bytes the caller must discard before
// the next call. Scan is pure: no I/O, no retained state, so feeding it a
// buffer split at any byte boundary (discarding only what it consumed)
// yields the same frame sequence as one call over the joined input.
//
// Consumption rules: a validated frame consumes through its checksum; a
// checksum mismatch consumes the whole candidate frame; a bad type byte
// or declared length consumes one byte past the marker start, so a real
// marker overlapping the false one is still found; with no marker in buf
// everything but the final byte is consumed (it may be half a marker).
func Scan(buf []byte) (Result, int) {
	i := indexMarker(buf)
	if i < 0 {
		n := len(buf) - 1
		if n < 0 {
			n = 0
		}
		return Result{Status: StatusNoFrame}, n
	}
	b := buf[i:]
	if len(b) < headerLen {
		return Result{Status: StatusNoFrame}, i
	}

	dir := sense.BridgeToHost
	if b[0] == markerH2B[0] {
		dir = sense.HostToBridge
	}
	typ := b[2]
	if typ != byte(sense.Sync) && typ != byte(sense.Async) {
		return Result{
			Status: StatusInvalid,
			Err:    fmt.Errorf("%w: 0x%02X", ErrBadType, typ),
		}, i + 1
	}

	fieldA, fieldB := b[3], b[4]
	var (
		id       byte
		ack      bool
		declared int
	)
	if fieldB == sense.AckSentinel {
		id, ack, declared = fieldA, true, ackDeclared
	} else {
		id, declared = fieldB, int(fieldA)
	}
	// The declared length counts the identifier byte plus the two checksum
	// bytes, so anything below 3 cannot frame a payload.
	if declared < ackDeclared {
		return Result{
			Status: StatusInvalid,
			Err:    fmt.Errorf("%w: %d", ErrBadLength, declared),
		}, i + 1
	}
	payloadLen := declared - 3

	total := headerLen + payloadLen + checksumLen
	if len(b) < total {
		return Result{Status: StatusNoFrame}, i
	}

	var sum uint16 = checksumSeed
	for _, c := range b[markerLen : total-checksumLen] {
		sum += uint16(c)
	}
	want := binary.BigEndian.Uint16(b[total-checksumLen:total])
	if sum != want {
		return Result{
			Status:  StatusInvalid,
			Err:     fmt.Errorf("%w: want 0x%04X got 0x%04X", ErrChecksum, want, sum),
			WantSum: want,
			GotSum:  sum,
		}, i + total
	}

	fr := sense.Frame{Dir: dir, Sync: sense.SyncClass(typ), ID: id, Ack: ack}
	fr.SetPayload(b[headerLen : headerLen+payloadLen])
	return Result{Status: StatusFrame, Frame: fr}, i + total
}
