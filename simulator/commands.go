package simulator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustwave-cnc/cncstream/protocol"
)

// processCommand is the $-command and G-code dispatcher. Called with
// s.mu held. Grounded on the original simulator's simProcessCommand:
// same command set, same modal semantics, translated into Go's
// multiple-return-value idiom instead of std::pair.
func (s *Simulator) processCommand(cmd string) {
	if cmd == "" {
		return
	}
	if cmd[0] == '$' {
		s.processDollarCommand(cmd)
		return
	}

	upper := strings.ToUpper(cmd)
	if i := strings.IndexByte(upper, '('); i >= 0 {
		upper = upper[:i]
	}
	if i := strings.IndexByte(upper, ';'); i >= 0 {
		upper = upper[:i]
	}
	if upper == "" {
		s.emit("ok")
		return
	}

	if s.processDwellAndPositioning(upper) {
		return
	}

	sim := &s.sim
	hasGCode := func(token string) bool {
		idx := strings.Index(upper, token)
		if idx < 0 {
			return false
		}
		after := idx + len(token)
		return after >= len(upper) || upper[after] < '0' || upper[after] > '9'
	}

	if hasGCode("G90") {
		sim.absoluteMode = true
	}
	if hasGCode("G91") {
		sim.absoluteMode = false
	}
	if hasGCode("G20") {
		sim.metricMode = false
	}
	if hasGCode("G21") {
		sim.metricMode = true
	}
	for i, g := range []string{"G54", "G55", "G56", "G57", "G58", "G59"} {
		if hasGCode(g) {
			sim.activeWCS = i
		}
	}

	hasG0 := hasGCode("G0") || hasGCode("G00")
	hasG1 := hasGCode("G1") || hasGCode("G01")
	hasG2 := hasGCode("G2") || hasGCode("G02")
	hasG3 := hasGCode("G3") || hasGCode("G03")
	switch {
	case hasG0:
		sim.motionMode, sim.isRapid = 0, true
	case hasG1:
		sim.motionMode, sim.isRapid = 1, false
	case hasG2:
		sim.motionMode = 2
	case hasG3:
		sim.motionMode = 3
	}

	if hf, fv := parseAxis(upper, 'F'); hf && fv > 0 {
		sim.feedRate = fv
	}

	hx, xv := parseAxis(upper, 'X')
	hy, yv := parseAxis(upper, 'Y')
	hz, zv := parseAxis(upper, 'Z')
	if hx || hy || hz {
		wcs := sim.wcsOffsets[sim.activeWCS]
		if sim.absoluteMode {
			if hx {
				sim.targetPos.X = xv + wcs.X + sim.g92Offset.X
			}
			if hy {
				sim.targetPos.Y = yv + wcs.Y + sim.g92Offset.Y
			}
			if hz {
				sim.targetPos.Z = zv + wcs.Z + sim.g92Offset.Z
			}
		} else {
			if hx {
				sim.targetPos.X = sim.machinePos.X + xv
			}
			if hy {
				sim.targetPos.Y = sim.machinePos.Y + yv
			}
			if hz {
				sim.targetPos.Z = sim.machinePos.Z + zv
			}
		}
	}

	switch {
	case hasGCode("M3") || hasGCode("M03"):
		sim.spindleDir = 3
		if hs, sv := parseAxis(upper, 'S'); hs {
			sim.spindleSpeed = sv
		} else if sim.spindleSpeed == 0 {
			sim.spindleSpeed = 12000
		}
	case hasGCode("M4") || hasGCode("M04"):
		sim.spindleDir = 4
		if hs, sv := parseAxis(upper, 'S'); hs {
			sim.spindleSpeed = sv
		} else if sim.spindleSpeed == 0 {
			sim.spindleSpeed = 12000
		}
	case hasGCode("M5") || hasGCode("M05"):
		sim.spindleDir = 0
		sim.spindleSpeed = 0
	}
	if hs, sv := parseAxis(upper, 'S'); hs && sim.spindleDir != 0 {
		sim.spindleSpeed = sv
	}

	if hasGCode("M7") || hasGCode("M07") {
		sim.coolantMist = true
	}
	if hasGCode("M8") || hasGCode("M08") {
		sim.coolantFlood = true
	}
	if hasGCode("M9") || hasGCode("M09") {
		sim.coolantMist, sim.coolantFlood = false, false
	}

	if ht, tv := parseAxis(upper, 'T'); ht {
		sim.toolNumber = int(tv)
	}

	if hasGCode("M0") || hasGCode("M00") || hasGCode("M1") || hasGCode("M01") {
		sim.machineState = protocol.StateHold
	}

	s.emit("ok")
}

// processDollarCommand handles $$, $#, $G, $I, $H, $X, $J=, and $N=V.
func (s *Simulator) processDollarCommand(cmd string) {
	sim := &s.sim
	upper := strings.ToUpper(cmd)

	switch {
	case strings.HasPrefix(upper, "$J="):
		incremental := strings.Contains(upper, "G91")
		hx, xv := parseAxis(upper, 'X')
		hy, yv := parseAxis(upper, 'Y')
		hz, zv := parseAxis(upper, 'Z')
		if hf, fv := parseAxis(upper, 'F'); hf && fv > 0 {
			sim.feedRate = fv
		}
		if incremental {
			if hx {
				sim.targetPos.X = sim.machinePos.X + xv
			}
			if hy {
				sim.targetPos.Y = sim.machinePos.Y + yv
			}
			if hz {
				sim.targetPos.Z = sim.machinePos.Z + zv
			}
		} else {
			if hx {
				sim.targetPos.X = xv
			}
			if hy {
				sim.targetPos.Y = yv
			}
			if hz {
				sim.targetPos.Z = zv
			}
		}
		sim.machineState = protocol.StateJog
		s.emit("ok")

	case upper == "$X":
		sim.machineState = protocol.StateIdle
		s.emit("[MSG:'$X' unlock]")
		s.emit("ok")

	case upper == "$H":
		sim.machinePos = Vec3{}
		sim.targetPos = Vec3{}
		sim.machineState = protocol.StateIdle
		s.emit("ok")

	case upper == "$$":
		s.emitSettings()

	case upper == "$#":
		s.emitHash()

	case upper == "$G":
		s.emitParserState()

	case upper == "$I":
		s.emit("[VER:1.1h.20190825 Simulator]")
		s.emit("[OPT:V,15,128]")
		s.emit("ok")

	case len(cmd) > 1 && cmd[1] != '$' && strings.Contains(cmd, "="):
		s.writeSetting(cmd)

	default:
		s.emit("ok")
	}
}

// writeSetting handles $N=V, the live settings-write form.
func (s *Simulator) writeSetting(cmd string) {
	body := cmd[1:]
	idx := strings.IndexByte(body, '=')
	if idx < 0 {
		s.emit("ok")
		return
	}
	id, errID := strconv.Atoi(strings.TrimSpace(body[:idx]))
	val, errVal := strconv.ParseFloat(strings.TrimSpace(body[idx+1:]), 64)
	if errID == nil && errVal == nil && id >= 0 && id < len(s.sim.settings) {
		s.sim.settings[id] = val
	}
	s.emit("ok")
}

func (s *Simulator) emitSettings() {
	for id, val := range s.sim.settings {
		if val == 0 && id != 0 && id != 2 && id != 3 && id != 4 && id != 5 && id != 6 &&
			id != 13 && id != 20 && id != 21 && id != 23 && id != 31 && id != 32 {
			continue
		}
		if val == math.Trunc(val) {
			s.emit(fmt.Sprintf("$%d=%.0f", id, val))
		} else {
			s.emit(fmt.Sprintf("$%d=%.3f", id, val))
		}
	}
	s.emit("ok")
}

func (s *Simulator) emitHash() {
	sim := &s.sim
	emitVec := func(tag string, v Vec3) {
		s.emit(fmt.Sprintf("[%s:%.3f,%.3f,%.3f]", tag, v.X, v.Y, v.Z))
	}
	wcsNames := []string{"G54", "G55", "G56", "G57", "G58", "G59"}
	for i, name := range wcsNames {
		emitVec(name, sim.wcsOffsets[i])
	}
	emitVec("G28", sim.g28Home)
	emitVec("G30", sim.g30Home)
	emitVec("G92", sim.g92Offset)
	s.emit(fmt.Sprintf("[TLO:%.3f]", sim.toolLengthOffset))
	s.emit("ok")
}

func (s *Simulator) emitParserState() {
	sim := &s.sim
	var motion string
	switch sim.motionMode {
	case 0:
		motion = "G0"
	case 1:
		motion = "G1"
	case 2:
		motion = "G2"
	default:
		motion = "G3"
	}
	wcsStr := []string{"G54", "G55", "G56", "G57", "G58", "G59"}[sim.activeWCS%6]
	var distance string
	if sim.absoluteMode {
		distance = "G90"
	} else {
		distance = "G91"
	}
	var units string
	if sim.metricMode {
		units = "G21"
	} else {
		units = "G20"
	}
	s.emit(fmt.Sprintf("[GC:%s %s %s %s M%d T%d F%.0f S%.0f]",
		motion, wcsStr, distance, units, sim.spindleDir, sim.toolNumber, sim.feedRate, sim.spindleSpeed))
	s.emit("ok")
}

// processDwellAndPositioning handles the G-code forms that return
// immediately rather than falling into the generic motion-word handling
// below: G10 (WCS offset write), G28/G30 (predefined positions), G92/
// G92.1 (coordinate offset), and G38.2/G38.3 (probe). Returns true if it
// consumed the line (and already emitted a response).
func (s *Simulator) processDwellAndPositioning(upper string) bool {
	sim := &s.sim

	if strings.Contains(upper, "G10") {
		hl, lv := parseAxis(upper, 'L')
		_, pv := parseAxis(upper, 'P')
		if hl {
			wcsIdx := int(pv)
			if wcsIdx == 0 {
				wcsIdx = sim.activeWCS + 1
			}
			if wcsIdx >= 1 && wcsIdx <= 6 {
				wcs := &sim.wcsOffsets[wcsIdx-1]
				hx, xv := parseAxis(upper, 'X')
				hy, yv := parseAxis(upper, 'Y')
				hz, zv := parseAxis(upper, 'Z')
				switch int(lv) {
				case 2:
					if hx {
						wcs.X = xv
					}
					if hy {
						wcs.Y = yv
					}
					if hz {
						wcs.Z = zv
					}
				case 20:
					if hx {
						wcs.X = sim.machinePos.X - xv
					}
					if hy {
						wcs.Y = sim.machinePos.Y - yv
					}
					if hz {
						wcs.Z = sim.machinePos.Z - zv
					}
				}
			}
		}
		s.emit("ok")
		return true
	}

	hasG28 := strings.Contains(upper, "G28") && !strings.Contains(upper, "G28.")
	if hasG28 {
		sim.targetPos = sim.g28Home
		sim.isRapid = true
	}
	if strings.Contains(upper, "G30") {
		sim.targetPos = sim.g30Home
		sim.isRapid = true
	}

	if strings.Contains(upper, "G92.1") {
		sim.g92Offset = Vec3{}
		s.emit("ok")
		return true
	}
	if strings.Contains(upper, "G92") && !strings.Contains(upper, "G92.") {
		hx, xv := parseAxis(upper, 'X')
		hy, yv := parseAxis(upper, 'Y')
		hz, zv := parseAxis(upper, 'Z')
		if hx {
			sim.g92Offset.X = sim.machinePos.X - xv
		}
		if hy {
			sim.g92Offset.Y = sim.machinePos.Y - yv
		}
		if hz {
			sim.g92Offset.Z = sim.machinePos.Z - zv
		}
		s.emit("ok")
		return true
	}

	if strings.Contains(upper, "G38.2") || strings.Contains(upper, "G38.3") {
		if hz, zv := parseAxis(upper, 'Z'); hz {
			sim.machinePos.Z += (zv - sim.machinePos.Z) * 0.5
		}
		sim.targetPos = sim.machinePos
		s.emit(fmt.Sprintf("[PRB:%.3f,%.3f,%.3f:1]", sim.machinePos.X, sim.machinePos.Y, sim.machinePos.Z))
		s.emit("ok")
		return true
	}

	return false
}

// parseAxis finds letter in an upper-cased line and parses the float that
// follows it, e.g. parseAxis("X10.5 Y2", 'X') -> (true, 10.5).
func parseAxis(upper string, letter byte) (bool, float64) {
	idx := strings.IndexByte(upper, letter)
	if idx < 0 || idx+1 >= len(upper) {
		return false, 0
	}
	end := idx + 1
	if end < len(upper) && (upper[end] == '-' || upper[end] == '+') {
		end++
	}
	for end < len(upper) && (upper[end] >= '0' && upper[end] <= '9' || upper[end] == '.') {
		end++
	}
	v, err := strconv.ParseFloat(upper[idx+1:end], 64)
	if err != nil {
		return false, 0
	}
	return true, v
}

// buildStatus renders the current simulated state through
// protocol.FormatStatusReport, the same function used to format a real
// controller's status, so the wire bytes a consumer's callback sees are
// indistinguishable between the two.
func (s *Simulator) buildStatus() string {
	sim := &s.sim
	wcs := sim.wcsOffsets[sim.activeWCS]
	workPos := sim.machinePos.sub(wcs).sub(sim.g92Offset)

	ovr := sim.feedOverride
	if sim.isRapid {
		ovr = sim.rapidOverride
	}
	feedDisplay := sim.feedRate * (float64(ovr) / 100.0)

	status := protocol.MachineStatus{
		State:           sim.machineState,
		MachinePos:      sim.machinePos.toProtocol(),
		WorkPos:         workPos.toProtocol(),
		FeedRate:        feedDisplay,
		SpindleSpeed:    sim.spindleSpeed,
		FeedOverride:    sim.feedOverride,
		RapidOverride:   sim.rapidOverride,
		SpindleOverride: sim.spindleOverride,
	}
	return protocol.FormatStatusReport(status)
}

// advancePosition moves machinePos toward targetPos by dt seconds' worth
// of travel at the active feed/rapid rate, the same linear-interpolation
// model the original simulator uses (no acceleration ramp).
func (s *Simulator) advancePosition(dt float64) {
	sim := &s.sim
	if sim.machineState == protocol.StateHold {
		return
	}

	diff := Vec3{sim.targetPos.X - sim.machinePos.X, sim.targetPos.Y - sim.machinePos.Y, sim.targetPos.Z - sim.machinePos.Z}
	dist := math.Sqrt(diff.X*diff.X + diff.Y*diff.Y + diff.Z*diff.Z)
	if dist < 0.001 {
		sim.machinePos = sim.targetPos
		if sim.machineState == protocol.StateJog {
			sim.machineState = protocol.StateIdle
		}
		return
	}

	var rate float64
	if sim.isRapid {
		rate = sim.settings[110] * (float64(sim.rapidOverride) / 100.0)
	} else {
		rate = sim.feedRate * (float64(sim.feedOverride) / 100.0)
	}
	speed := rate / 60.0
	move := speed * dt

	if sim.machineState != protocol.StateJog && sim.machineState != protocol.StateHold && dist >= 0.001 {
		sim.machineState = protocol.StateRun
	}

	if move >= dist {
		sim.machinePos = sim.targetPos
		if sim.machineState == protocol.StateJog {
			sim.machineState = protocol.StateIdle
		}
	} else {
		ratio := move / dist
		sim.machinePos.X += diff.X * ratio
		sim.machinePos.Y += diff.Y * ratio
		sim.machinePos.Z += diff.Z * ratio
	}
}
