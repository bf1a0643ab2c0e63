package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sensebridge/go-sense-server/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"device_rx", snap.DeviceRx,
					"device_tx", snap.DeviceTx,
					"tcp_rx", snap.TCPRx,
					"tcp_tx", snap.TCPTx,
					"invalid_frames", snap.InvalidFrames,
					"unknown_commands", snap.UnknownCommands,
					"malformed_payloads", snap.MalformedPayloads,
					"hub_drops", snap.HubDrops,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
