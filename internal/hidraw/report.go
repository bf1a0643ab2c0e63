package hidraw

// The bridge talks through fixed 64-byte interrupt reports. The first
// byte of every inbound report counts the meaningful bytes that follow;
// the rest of the report is stale padding from earlier transfers.
// Outbound traffic goes out as output reports with id OutputReportID.
const (
	ReportSize     = 64
	OutputReportID = 0xAA
)

// ReportPayload strips the leading valid-byte count from a raw inbound
// report. The count is clamped to what the report actually holds, so a
// short read never over-slices; the frame scanner downstream tolerates
// partial frames anyway.
func ReportPayload(report []byte) []byte {
	if len(report) == 0 {
		return nil
	}
	n := int(report[0])
	if n > len(report)-1 {
		n = len(report) - 1
	}
	return report[1 : 1+n]
}
