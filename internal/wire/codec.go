package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sensebridge/go-sense-server/internal/metrics"
	"github.com/sensebridge/go-sense-server/internal/sense"
)

// Codec encodes and decodes bridge frames. It is stateless and safe for
// concurrent use; all stream state lives in the caller's buffer.
type Codec struct{}

// CompactBuffer reclaims consumed prefix capacity when the underlying
// buffer grows too large relative to unread bytes. It returns true if
// compaction occurred. Thresholds chosen to avoid excessive copying.
func CompactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	// If buffer size < 1KB, skip.
	if len(data) < 1024 {
		return false
	}
	// If unread < 25% of capacity, compact.
	if cap(data) > 0 && len(data)*4 < cap(data) {
		clone := make([]byte, len(data))
		copy(clone, data)
		b.Reset()
		_, _ = b.Write(clone)
		return true
	}
	return false
}

// AppendFrame appends the wire encoding of f to dst and returns the
// extended slice.
func AppendFrame(dst []byte, f sense.Frame) []byte {
	m := f.Dir.Marker()
	start := len(dst)
	dst = append(dst, m[0], m[1], byte(f.Sync))
	if f.Ack {
		dst = append(dst, f.ID, sense.AckSentinel)
	} else {
		dst = append(dst, byte(int(f.Len)+3), f.ID)
		dst = append(dst, f.Data[:f.Len]...)
	}
	var sum uint16 = checksumSeed
	for _, b := range dst[start+markerLen:] {
		sum += uint16(b)
	}
	return append(dst, byte(sum>>8), byte(sum))
}

// Encode builds the on-wire representation of a single frame.
func (Codec) Encode(f sense.Frame) []byte {
	return AppendFrame(make([]byte, 0, headerLen+int(f.Len)+checksumLen), f)
}

// EncodeBatch encodes frames back to back into one slice, sized for a
// single writev on the relay path.
func (Codec) EncodeBatch(frames []sense.Frame) []byte {
	n := 0
	for i := range frames {
		n += headerLen + int(frames[i].Len) + checksumLen
	}
	buf := make([]byte, 0, n)
	for i := range frames {
		buf = AppendFrame(buf, frames[i])
	}
	return buf
}

// EncodeTo writes the batch encoding of frames to w and reports the
// number of bytes written.
func (c Codec) EncodeTo(w io.Writer, frames []sense.Frame) (int, error) {
	buf := c.EncodeBatch(frames)
	n, err := w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("wire: write batch: %w", err)
	}
	return n, nil
}

// DecodeStream drains all complete frames from in, invoking out for
// each. Leading garbage is skipped; frames failing validation are
// counted in metrics and skipped per the Scan consumption rules. It
// returns when the buffer holds no further complete frame, leaving any
// partial tail for the next call.
func (Codec) DecodeStream(in *bytes.Buffer, out func(sense.Frame)) error {
	for {
		// Periodically compact to avoid unbounded growth from misaligned garbage
		_ = CompactBuffer(in)
		res, n := Scan(in.Bytes())
		switch res.Status {
		case StatusNoFrame:
			if n > 0 {
				in.Next(n)
			}
			return nil
		case StatusInvalid:
			metrics.IncInvalidFrame()
			in.Next(n)
		case StatusFrame:
			in.Next(n)
			out(res.Frame)
		}
	}
}
