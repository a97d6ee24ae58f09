package protocol

import "strconv"

// alarmText is the closed lookup table for GRBL v1.1-family ALARM codes.
var alarmText = map[int]string{
	1:  "Hard limit triggered",
	2:  "Soft limit alarm; machine position likely lost",
	3:  "Reset while in motion; position lost",
	4:  "Probe fail; initial probe state inconsistent",
	5:  "Probe fail; probe did not contact workpiece",
	6:  "Homing fail; reset during active homing cycle",
	7:  "Homing fail; door opened during homing cycle",
	8:  "Homing fail; pull-off failed to clear limit switch",
	9:  "Homing fail; could not find limit switch within search distance",
	10: "Homing fail; on dual-axis machines, second limit switch not found",
}

// errorText is the closed lookup table for GRBL v1.1-family error:N codes.
var errorText = map[int]string{
	1:  "G-code words consist of a letter and a value; letter was not found",
	2:  "Numeric value format is not valid or missing an expected value",
	3:  "Grbl '$' system command was not recognized or supported",
	4:  "Negative value received for an expected positive value",
	5:  "Homing cycle is not enabled via settings",
	6:  "Minimum step pulse time must be greater than 3usec",
	7:  "EEPROM read failed; default values used",
	8:  "Grbl '$' command cannot be used unless Grbl is IDLE",
	9:  "G-code locked out during alarm or jog state",
	10: "Soft limits cannot be enabled without homing also enabled",
	11: "Max characters per line exceeded; line was not processed and executed",
	12: "Grbl '$' setting value exceeds the maximum step rate supported",
	13: "Safety door detected as opened and door state initiated",
	14: "Build info or startup line exceeded EEPROM line length limit",
	15: "Jog target exceeds machine travel; command ignored",
	16: "Jog command with no '=' or contains prohibited G-code",
	17: "Laser mode requires PWM output",
	20: "Unsupported or invalid G-code command found in block",
	21: "More than one G-code command from same modal group in block",
	22: "Feed rate has not yet been set or is undefined",
	23: "G-code command in block requires an integer value",
	24: "Two G-code commands that both require the use of the XYZ axis words",
	25: "A G-code word was repeated in the block",
	26: "A G-code command implicitly or explicitly requires XYZ axis words",
	27: "N line number value is not within the valid range",
	28: "A G-code command was sent, but is missing some required P or L value",
	29: "Grbl supports six work coordinate systems, G54-G59; value out of range",
	30: "The G53 G-code command requires either a G0 or G1 motion mode",
	31: "There are unused axis words in the block and G80 motion mode cancel",
	32: "A G2/G3 arc was commanded but there are no XYZ axis words in the block",
	33: "The motion command has an invalid target",
	34: "A G2/G3 arc could not be generated for the given parameters",
	35: "A G2/G3 arc is missing the offset I/J/K words or radius",
	36: "There are unused/unneeded/prohibited extra axis words in the block",
	37: "The G43.1 dynamic tool length offset command cannot apply an offset to an axis other than its configured axis",
	38: "Tool number greater than max supported value",
}

func lookup(table map[int]string, code int) string {
	if s, ok := table[code]; ok {
		return s
	}
	return "Unknown code " + strconv.Itoa(code)
}

// AlarmText maps an ALARM numeric code to human text. Unknown codes yield a
// generic string containing the numeric code rather than an error.
func AlarmText(code int) string { return lookup(alarmText, code) }

// ErrorText maps an error:N numeric code to human text. Unknown codes yield
// a generic string containing the numeric code rather than an error.
func ErrorText(code int) string { return lookup(errorText, code) }
