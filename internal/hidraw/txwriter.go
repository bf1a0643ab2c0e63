package hidraw

import (
	"context"
	"errors"

	"github.com/sensebridge/go-sense-server/internal/metrics"
	"github.com/sensebridge/go-sense-server/internal/sense"
	"github.com/sensebridge/go-sense-server/internal/transport"
	"github.com/sensebridge/go-sense-server/internal/wire"
)

var ErrTxOverflow = errors.New("hidraw tx overflow")

// Dev is the minimal interface needed by the backend and TXWriter.
// Implemented by *Device in production and by fakes in tests.
type Dev interface {
	ReadReport(buf []byte) ([]byte, error)
	Write(p []byte) (int, error)
	Close() error
}

// TXWriter funnels all device writes through a single goroutine,
// mirroring the serial TXWriter behavior.
type TXWriter struct{ base *transport.AsyncTx }

// NewTXWriter creates a hidraw TXWriter with a buffered channel of size buf.
func NewTXWriter(parent context.Context, dev Dev, codec wire.Codec, buf int) *TXWriter {
	send := func(fr sense.Frame) error {
		_, err := dev.Write(codec.Encode(fr))
		return err
	}
	hooks := transport.Hooks{
		OnError: func(err error) { metrics.IncError(metrics.ErrHIDWrite) },
		OnAfter: func() { metrics.IncDeviceTx() },
		OnDrop: func() error {
			metrics.IncError(metrics.ErrHIDOverflow)
			return ErrTxOverflow
		},
	}
	return &TXWriter{base: transport.NewAsyncTx(parent, buf, send, hooks)}
}

// SendFrame queues a frame for asynchronous device write (drops with ErrTxOverflow if buffer full).
func (w *TXWriter) SendFrame(fr sense.Frame) error { return w.base.SendFrame(fr) }

// Close stops the writer and waits for the worker goroutine to finish.
func (w *TXWriter) Close() { w.base.Close() }
