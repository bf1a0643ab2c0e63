//go:build !linux

package hidraw

import "errors"

var errUnsupported = errors.New("hidraw: unsupported on this platform")

// Device stub so non-linux builds compile; Open always fails.
type Device struct{}

func Open(path string) (*Device, error) { return nil, errUnsupported }

func (d *Device) Close() error { return errUnsupported }

func (d *Device) ReadReport(buf []byte) ([]byte, error) { return nil, errUnsupported }

func (d *Device) Write(p []byte) (int, error) { return 0, errUnsupported }
