package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// LineKind classifies a single line received from a GRBL-family controller.
type LineKind int

const (
	LineUnknown LineKind = iota
	LineStatus           // <...>
	LineAlarm            // ALARM:N
	LineOk               // ok
	LineError            // error:N
	LineBracketed        // [MSG:...], [GC:...], [G54:...], [PRB:...], [VER:...], [OPT:...], [TLO:...]
)

// Line is the classification of one received line, plus whatever fields
// were extracted from it.
type Line struct {
	Kind    LineKind
	Code    int    // ALARM:N / error:N numeric code
	Tag     string // bracket tag, e.g. "MSG", "GC", "PRB"
	Payload string // bracket body (without the tag/colon/brackets), or the raw line for other kinds
}

// Classify inspects a single received line (already stripped of its
// trailing newline/CR) and reports what kind of wire message it is.
func Classify(line string) Line {
	if line == "" {
		return Line{Kind: LineUnknown}
	}
	if line == "ok" {
		return Line{Kind: LineOk}
	}
	if strings.HasPrefix(line, "error:") {
		code, _ := strconv.Atoi(strings.TrimSpace(line[len("error:"):]))
		return Line{Kind: LineError, Code: code}
	}
	if strings.HasPrefix(line, "ALARM:") {
		code, _ := strconv.Atoi(strings.TrimSpace(line[len("ALARM:"):]))
		return Line{Kind: LineAlarm, Code: code}
	}
	if len(line) >= 2 && line[0] == '<' && line[len(line)-1] == '>' {
		return Line{Kind: LineStatus, Payload: line}
	}
	if len(line) >= 2 && line[0] == '[' && line[len(line)-1] == ']' {
		body := line[1 : len(line)-1]
		tag := body
		payload := ""
		if idx := strings.IndexByte(body, ':'); idx >= 0 {
			tag = body[:idx]
			payload = body[idx+1:]
		}
		return Line{Kind: LineBracketed, Tag: tag, Payload: payload}
	}
	return Line{Kind: LineUnknown, Payload: line}
}

// IsBanner reports whether line looks like a firmware startup banner
// (classic Grbl/grblHAL print one on reset; FluidNC's banner arrives as a
// bracketed [MSG:INFO: FluidNC ...] line).
func IsBanner(line string) bool {
	return strings.Contains(line, "Grbl") || strings.Contains(line, "grbl") || strings.Contains(line, "FluidNC")
}

// FirmwareFromBanner classifies the firmware family from banner text.
func FirmwareFromBanner(banner string) string {
	switch {
	case strings.Contains(banner, "FluidNC"):
		return "FluidNC"
	case strings.Contains(banner, "GrblHAL"), strings.Contains(banner, "grblHAL"):
		return "grblHAL"
	default:
		return "GRBL"
	}
}

// parseVec3 parses a comma-separated 3-float (or, as a fallback, 2-float)
// list. Unparsable components are left at zero rather than erroring, so
// that the rest of a malformed status report's fields can still be used.
func parseVec3(s string) Vec3 {
	parts := strings.SplitN(s, ",", 3)
	var v Vec3
	if len(parts) > 0 {
		v.X, _ = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	}
	if len(parts) > 1 {
		v.Y, _ = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	}
	if len(parts) > 2 {
		v.Z, _ = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	}
	return v
}

// ParseStatusReport parses a status report line of the form
// "<State|MPos:x,y,z|WPos:x,y,z|WCO:x,y,z|FS:feed,speed|Ov:f,r,s|Pn:XYZ>".
// Unrecognized keys are ignored; a malformed field is skipped without
// aborting the rest of the parse.
func ParseStatusReport(report string) MachineStatus {
	var status MachineStatus
	if len(report) < 3 || report[0] != '<' || report[len(report)-1] != '>' {
		return status
	}
	inner := report[1 : len(report)-1]
	fields := strings.Split(inner, "|")
	if len(fields) == 0 {
		return status
	}
	status.State = ParseState(fields[0])

	var wco Vec3
	haveWCO, haveWPos := false, false

	for _, f := range fields[1:] {
		idx := strings.IndexByte(f, ':')
		if idx < 0 {
			continue
		}
		key := f[:idx]
		val := f[idx+1:]
		switch key {
		case "MPos":
			status.MachinePos = parseVec3(val)
		case "WPos":
			status.WorkPos = parseVec3(val)
			haveWPos = true
		case "WCO":
			wco = parseVec3(val)
			haveWCO = true
		case "FS":
			parts := strings.SplitN(val, ",", 2)
			if len(parts) > 0 {
				status.FeedRate, _ = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			}
			if len(parts) > 1 {
				status.SpindleSpeed, _ = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			}
		case "F":
			status.FeedRate, _ = strconv.ParseFloat(strings.TrimSpace(val), 64)
		case "Ov":
			parts := strings.SplitN(val, ",", 3)
			if len(parts) > 0 {
				status.FeedOverride, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
			}
			if len(parts) > 1 {
				status.RapidOverride, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
			}
			if len(parts) > 2 {
				status.SpindleOverride, _ = strconv.Atoi(strings.TrimSpace(parts[2]))
			}
		case "Pn":
			status.InputPins = 0
			for _, c := range val {
				switch c {
				case 'X':
					status.InputPins |= PinXLimit
				case 'Y':
					status.InputPins |= PinYLimit
				case 'Z':
					status.InputPins |= PinZLimit
				case 'P':
					status.InputPins |= PinProbe
				case 'D':
					status.InputPins |= PinDoor
				case 'H':
					status.InputPins |= PinHold
				case 'R':
					status.InputPins |= PinReset
				case 'S':
					status.InputPins |= PinStart
				}
			}
		}
		// Unrecognized keys are ignored per the wire-format spec.
	}

	// WCO is only used to derive WPos when the report didn't carry one
	// directly.
	if haveWCO && !haveWPos {
		status.WorkPos = status.MachinePos.Sub(wco)
	}
	return status
}

// formatPn renders the Pn field's letter codes in the same order GRBL
// reports them; pins with no bit set contribute nothing.
func formatPn(bits uint32) string {
	var sb strings.Builder
	for _, p := range []struct {
		bit    uint32
		letter byte
	}{
		{PinXLimit, 'X'}, {PinYLimit, 'Y'}, {PinZLimit, 'Z'},
		{PinProbe, 'P'}, {PinDoor, 'D'}, {PinHold, 'H'},
		{PinReset, 'R'}, {PinStart, 'S'},
	} {
		if bits&p.bit != 0 {
			sb.WriteByte(p.letter)
		}
	}
	return sb.String()
}

// FormatStatusReport renders status back into the wire format
// "<State|MPos:x,y,z|WPos:x,y,z|WCO:x,y,z|FS:feed,speed|Ov:f,r,s|Pn:...>".
// It round-trips with ParseStatusReport for every field in the recognized
// set, and is what the simulator uses to emit status reports over its
// byte-stream.
func FormatStatusReport(status MachineStatus) string {
	wco := status.MachinePos.Sub(status.WorkPos)
	var sb strings.Builder
	fmt.Fprintf(&sb, "<%s|MPos:%.3f,%.3f,%.3f|WPos:%.3f,%.3f,%.3f|WCO:%.3f,%.3f,%.3f|FS:%.0f,%.0f|Ov:%d,%d,%d",
		status.State, status.MachinePos.X, status.MachinePos.Y, status.MachinePos.Z,
		status.WorkPos.X, status.WorkPos.Y, status.WorkPos.Z,
		wco.X, wco.Y, wco.Z,
		status.FeedRate, status.SpindleSpeed,
		status.FeedOverride, status.RapidOverride, status.SpindleOverride)
	if pn := formatPn(status.InputPins); pn != "" {
		fmt.Fprintf(&sb, "|Pn:%s", pn)
	}
	sb.WriteByte('>')
	return sb.String()
}
