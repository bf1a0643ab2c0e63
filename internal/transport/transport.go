package transport

import (
	"bytes"
	"io"

	"github.com/sensebridge/go-sense-server/internal/sense"
	"github.com/sensebridge/go-sense-server/internal/wire"
)

// StreamDecoder drains all complete frames from an accumulation buffer,
// leaving any partial tail in place for the next call.
type StreamDecoder interface {
	DecodeStream(in *bytes.Buffer, out func(sense.Frame)) error
}

// FrameEncoder can encode single frames and batches (either to bytes or
// directly to a writer).
type FrameEncoder interface {
	Encode(sense.Frame) []byte
	EncodeBatch([]sense.Frame) []byte
	EncodeTo(w io.Writer, frames []sense.Frame) (int, error)
}

// Codec combines both directions; the relay server and the device
// backends share one implementation.
type Codec interface {
	StreamDecoder
	FrameEncoder
}

// FrameSink is a generic frame transmission target.
type FrameSink interface {
	SendFrame(sense.Frame) error
}

// Compile-time assertions that wire.Codec satisfies the capabilities.
var (
	_ Codec = wire.Codec{}
)
