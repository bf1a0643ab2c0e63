package hidraw

import (
	"bytes"
	"testing"
)

func TestReportPayload(t *testing.T) {
	tests := []struct {
		name   string
		report []byte
		want   []byte
	}{
		{"empty", nil, nil},
		{"zeroCount", []byte{0x00, 0xDE, 0xAD}, []byte{}},
		{"exactCount", []byte{0x03, 0x55, 0xAA, 0x53, 0x99, 0x98}, []byte{0x55, 0xAA, 0x53}},
		{"countClampedToShortRead", []byte{0x10, 0x55, 0xAA}, []byte{0x55, 0xAA}},
		{"fullReport", append([]byte{63}, bytes.Repeat([]byte{0x42}, 63)...), bytes.Repeat([]byte{0x42}, 63)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ReportPayload(tc.report)
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("got % X want % X", got, tc.want)
			}
		})
	}
}
