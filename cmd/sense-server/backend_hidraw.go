package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sensebridge/go-sense-server/internal/hidraw"
	"github.com/sensebridge/go-sense-server/internal/metrics"
	"github.com/sensebridge/go-sense-server/internal/sense"
	"github.com/sensebridge/go-sense-server/internal/wire"
)

// openHIDDevice is a hook for tests (overridden in unit tests).
var openHIDDevice = func(path string) (hidraw.Dev, error) { return hidraw.Open(path) }

// initHIDBackend sets up the hidraw backend, launching the RX loop.
// Inbound interrupt reports are unwrapped to their valid bytes and fed
// to the frame scanner; report boundaries carry no meaning for framing.
func initHIDBackend(ctx context.Context, cfg *appConfig, onFrame func(sense.Frame), l *slog.Logger, wg *sync.WaitGroup) (func(sense.Frame) error, func(), error) {
	dev, err := openHIDDevice(cfg.hidDev)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open hidraw: %w", err)
	}
	l.Info("hidraw_open", "device", cfg.hidDev)
	codec := wire.Codec{}
	w := hidraw.NewTXWriter(ctx, dev, codec, txQueueSize)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("hidraw_rx_end")
		buf := make([]byte, hidraw.ReportSize)
		acc := bytes.NewBuffer(nil)
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			payload, err := dev.ReadReport(buf)
			if err != nil {
				if ctx.Err() != nil { // shutting down
					return
				}
				metrics.IncError(metrics.ErrHIDRead)
				l.Warn("hidraw_read_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff *= 2
				if backoff > rxBackoffMax {
					backoff = rxBackoffMax
				}
				continue
			}
			if len(payload) > 0 {
				acc.Write(payload)
				_ = codec.DecodeStream(acc, func(fr sense.Frame) {
					metrics.IncDeviceRx()
					onFrame(fr)
				})
				if acc.Len() == 0 && cap(acc.Bytes()) > largeBufferReclaimThreshold {
					acc = bytes.NewBuffer(nil)
				}
			}
			backoff = rxBackoffMin
		}
	}()
	return w.SendFrame, func() { _ = dev.Close(); w.Close() }, nil
}
