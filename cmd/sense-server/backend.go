package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sensebridge/go-sense-server/internal/sense"
)

// initBackend selects the backend, starts its RX loop and returns a frame sender and cleanup.
// Every frame the scanner validates on the device stream is passed to onFrame.
// It returns an error instead of exiting the process to allow graceful handling by the caller.
func initBackend(ctx context.Context, cfg *appConfig, onFrame func(sense.Frame), l *slog.Logger, wg *sync.WaitGroup) (func(sense.Frame) error, func(), error) {
	switch cfg.backend {
	case "hidraw":
		return initHIDBackend(ctx, cfg, onFrame, l, wg)
	case "serial":
		return initSerialBackend(ctx, cfg, onFrame, l, wg)
	default:
		return nil, func() {}, fmt.Errorf("unknown backend %q (use hidraw|serial)", cfg.backend)
	}
}
