package wire

import (
	"testing"

	"github.com/sensebridge/go-sense-server/internal/sense"
)

// FuzzScan ensures the scanner never panics and always makes progress on
// arbitrary input.
func FuzzScan(f *testing.F) {
	f.Add(authRspWire)
	f.Add(verRspWire)
	f.Add(countAckWire)
	f.Add([]byte{0x55, 0xAA, 0x53})
	f.Add([]byte{0x00, 0x55, 0xAA, 0x99, 0xFF})
	f.Fuzz(func(t *testing.T, data []byte) {
		res, n := Scan(data)
		if n < 0 || n > len(data) {
			t.Fatalf("consumed %d of %d bytes", n, len(data))
		}
		// Anything but a partial frame must consume input, or resync stalls.
		if res.Status != StatusNoFrame && n == 0 {
			t.Fatalf("status %v consumed nothing", res.Status)
		}
	})
}

// FuzzEncodeScanRoundTrip ensures encode output always scans back to the
// same frame.
func FuzzEncodeScanRoundTrip(f *testing.F) {
	f.Add(byte(0x15), byte(0x53), false, []byte{})
	f.Add(byte(0x05), byte(0x43), false, []byte("777AF9BF"))
	f.Add(byte(0x2E), byte(0x53), true, []byte{})
	f.Fuzz(func(t *testing.T, id byte, syncByte byte, ack bool, payload []byte) {
		sync := sense.Sync
		if syncByte&1 == 1 {
			sync = sense.Async
		}
		if id == sense.AckSentinel || len(payload) > sense.MaxPayload {
			t.Skip()
		}
		in := mkFrame(sense.BridgeToHost, sync, id, ack, payload)
		res, n := Scan(Codec{}.Encode(in))
		if res.Status != StatusFrame {
			t.Fatalf("scan of encoded frame: status=%v err=%v", res.Status, res.Err)
		}
		if n != headerLen+int(in.Len)+checksumLen {
			t.Fatalf("consumed %d", n)
		}
		if !frameEq(res.Frame, in) {
			t.Fatalf("round trip mismatch\n got  %+v\n want %+v", res.Frame, in)
		}
	})
}
