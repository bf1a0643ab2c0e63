//go:build linux

package hidraw

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Device is a raw hidraw node carrying the bridge byte stream.
type Device struct {
	fd   int
	path string
}

// Open opens the hidraw node for blocking read/write. The node must
// already be bound to the bridge; interface claiming is the kernel's job.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Device{fd: fd, path: path}, nil
}

func (d *Device) Close() error { return unix.Close(d.fd) }

// ReadReport reads one interrupt report into buf and returns the valid
// payload bytes per the report framing (see ReportPayload). The returned
// slice aliases buf.
func (d *Device) ReadReport(buf []byte) ([]byte, error) {
	if len(buf) < ReportSize {
		buf = make([]byte, ReportSize)
	}
	n, err := unix.Read(d.fd, buf[:ReportSize])
	if err != nil {
		return nil, err
	}
	return ReportPayload(buf[:n]), nil
}

// Write sends p as one output report on the bridge's report id.
func (d *Device) Write(p []byte) (int, error) {
	out := make([]byte, len(p)+1)
	out[0] = OutputReportID
	copy(out[1:], p)
	if _, err := unix.Write(d.fd, out); err != nil {
		return 0, err
	}
	return len(p), nil
}
