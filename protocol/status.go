// Package protocol implements the GRBL/FluidNC/grblHAL wire format: status
// report parsing, alarm/error code lookup, and line classification.
package protocol

// MachineState is the controller's reported run state.
type MachineState int

const (
	StateUnknown MachineState = iota
	StateIdle
	StateRun
	StateHold
	StateJog
	StateAlarm
	StateDoor
	StateCheck
	StateHome
	StateSleep
)

func (s MachineState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRun:
		return "Run"
	case StateHold:
		return "Hold"
	case StateJog:
		return "Jog"
	case StateAlarm:
		return "Alarm"
	case StateDoor:
		return "Door"
	case StateCheck:
		return "Check"
	case StateHome:
		return "Home"
	case StateSleep:
		return "Sleep"
	default:
		return "Unknown"
	}
}

// ParseState maps a status report's leading field (possibly suffixed
// ":N", e.g. "Hold:0") to a MachineState.
func ParseState(s string) MachineState {
	// Strip an optional ":N" suffix (Hold:0, Door:1, ...).
	base := s
	for i, c := range s {
		if c == ':' {
			base = s[:i]
			break
		}
	}
	switch base {
	case "Idle":
		return StateIdle
	case "Run":
		return StateRun
	case "Hold":
		return StateHold
	case "Jog":
		return StateJog
	case "Alarm":
		return StateAlarm
	case "Door":
		return StateDoor
	case "Check":
		return StateCheck
	case "Home":
		return StateHome
	case "Sleep":
		return StateSleep
	default:
		return StateUnknown
	}
}

// Input pin bits reported in a status report's Pn field.
const (
	PinXLimit uint32 = 1 << iota
	PinYLimit
	PinZLimit
	PinProbe
	PinDoor
	PinHold
	PinReset
	PinStart
)

// Vec3 is a 3-axis position in millimeters.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// MachineStatus is the parsed view of the controller's latest status report.
type MachineStatus struct {
	State          MachineState
	MachinePos     Vec3
	WorkPos        Vec3
	FeedRate       float64
	SpindleSpeed   float64
	FeedOverride   int // percent, 10..200
	RapidOverride  int // percent, one of 25/50/100
	SpindleOverride int // percent, 10..200
	InputPins      uint32
}
