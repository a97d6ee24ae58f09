// Package cncstream drives a GRBL-family CNC controller (classic GRBL,
// FluidNC, grblHAL) over a line-oriented byte stream: it streams G-code
// under character-counting flow control, dispatches real-time commands,
// and keeps a parsed view of the controller's status reports, all while
// exposing a callback-driven API to a consumer running on its own thread.
package cncstream

import "github.com/dustwave-cnc/cncstream/protocol"

// FirmwareType identifies which GRBL-family dialect a session is talking
// to, derived from its startup banner.
type FirmwareType int

const (
	FirmwareUnknown FirmwareType = iota
	FirmwareGRBL
	FirmwareFluidNC
	FirmwareGrblHAL
)

func (f FirmwareType) String() string {
	switch f {
	case FirmwareGRBL:
		return "GRBL"
	case FirmwareFluidNC:
		return "FluidNC"
	case FirmwareGrblHAL:
		return "grblHAL"
	default:
		return "unknown"
	}
}

func firmwareFromBanner(banner string) FirmwareType {
	switch protocol.FirmwareFromBanner(banner) {
	case "FluidNC":
		return FirmwareFluidNC
	case "grblHAL":
		return FirmwareGrblHAL
	default:
		return FirmwareGRBL
	}
}

// LineAck reports the result of one program line being acknowledged by
// the firmware.
type LineAck struct {
	LineIndex    int
	OK           bool
	ErrorCode    int
	ErrorMessage string
}

// StreamingError is built the moment a mid-stream error:N response
// terminates the current stream.
type StreamingError struct {
	LineIndex     int
	ErrorCode     int
	ErrorMessage  string
	FailedLine    string
	LinesInFlight int
}

// StreamProgress is a point-in-time snapshot suitable for UI display.
type StreamProgress struct {
	TotalLines     int
	AckedLines     int
	ErrorCount     int
	ElapsedSeconds float64
}
