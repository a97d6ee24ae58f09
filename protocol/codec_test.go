package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		line string
		kind LineKind
	}{
		{"<Idle|MPos:0,0,0>", LineStatus},
		{"ALARM:1", LineAlarm},
		{"ok", LineOk},
		{"error:20", LineError},
		{"[MSG:Caution: Unlocked]", LineBracketed},
		{"[GC:G0 G54 G17 G21 G90 G94 M5 M9 T0 F0 S0]", LineBracketed},
		{"Grbl 1.1h ['$' for help]", LineUnknown},
	}
	for _, c := range cases {
		got := Classify(c.line)
		assert.Equalf(t, c.kind, got.Kind, "line %q", c.line)
	}
}

func TestClassifyErrorCode(t *testing.T) {
	l := Classify("error:20")
	assert.Equal(t, 20, l.Code)
}

func TestClassifyAlarmCode(t *testing.T) {
	l := Classify("ALARM:9")
	assert.Equal(t, 9, l.Code)
}

func TestClassifyBracketedTag(t *testing.T) {
	l := Classify("[PRB:1.000,2.000,3.000:1]")
	assert.Equal(t, "PRB", l.Tag)
	assert.Equal(t, "1.000,2.000,3.000:1", l.Payload)
}

// S5 from spec.md §8.
func TestParseStatusReportS5(t *testing.T) {
	in := "<Hold:0|MPos:1.000,2.000,3.000|WCO:0.5,0.5,0.0|FS:1500,12000|Ov:110,50,100|Pn:XP>"
	status := ParseStatusReport(in)

	require.Equal(t, StateHold, status.State)
	assert.Equal(t, Vec3{1, 2, 3}, status.MachinePos)
	assert.InDelta(t, 0.5, status.WorkPos.X, 1e-9)
	assert.InDelta(t, 1.5, status.WorkPos.Y, 1e-9)
	assert.InDelta(t, 3.0, status.WorkPos.Z, 1e-9)
	assert.Equal(t, 1500.0, status.FeedRate)
	assert.Equal(t, 12000.0, status.SpindleSpeed)
	assert.Equal(t, 110, status.FeedOverride)
	assert.Equal(t, 50, status.RapidOverride)
	assert.Equal(t, 100, status.SpindleOverride)
	assert.Equal(t, PinXLimit|PinProbe, status.InputPins)
}

func TestParseStatusReportWPosTakesPrecedenceOverWCO(t *testing.T) {
	in := "<Idle|MPos:1,2,3|WPos:9,9,9|WCO:1,1,1>"
	status := ParseStatusReport(in)
	assert.Equal(t, Vec3{9, 9, 9}, status.WorkPos)
}

func TestParseStatusReportUnknownKeyIgnored(t *testing.T) {
	in := "<Idle|MPos:1,2,3|Zzz:bogus|FS:100,200>"
	status := ParseStatusReport(in)
	assert.Equal(t, Vec3{1, 2, 3}, status.MachinePos)
	assert.Equal(t, 100.0, status.FeedRate)
}

func TestParseStatusReportMalformedFieldSkipped(t *testing.T) {
	in := "<Idle|MPos:notafloat,2,3|FS:100,200>"
	status := ParseStatusReport(in)
	assert.Equal(t, 0.0, status.MachinePos.X)
	assert.Equal(t, 2.0, status.MachinePos.Y)
	assert.Equal(t, 100.0, status.FeedRate)
}

// Invariant 6: parsing then re-serializing a status report yields a
// byte-identical line for all fields in the recognized set.
func TestStatusReportRoundTrip(t *testing.T) {
	status := MachineStatus{
		State:           StateRun,
		MachinePos:      Vec3{1, 2, 3},
		WorkPos:         Vec3{0.5, 1.5, 3},
		FeedRate:        1500,
		SpindleSpeed:    12000,
		FeedOverride:    110,
		RapidOverride:   50,
		SpindleOverride: 100,
	}
	line := FormatStatusReport(status)
	reparsed := ParseStatusReport(line)
	assert.Equal(t, status.State, reparsed.State)
	assert.Equal(t, status.MachinePos, reparsed.MachinePos)
	assert.Equal(t, status.WorkPos, reparsed.WorkPos)
	assert.Equal(t, status.FeedRate, reparsed.FeedRate)
	assert.Equal(t, status.SpindleSpeed, reparsed.SpindleSpeed)
	assert.Equal(t, status.FeedOverride, reparsed.FeedOverride)
	assert.Equal(t, status.RapidOverride, reparsed.RapidOverride)
	assert.Equal(t, status.SpindleOverride, reparsed.SpindleOverride)
	assert.Equal(t, line, FormatStatusReport(reparsed))
}

func TestAlarmAndErrorText(t *testing.T) {
	assert.Contains(t, AlarmText(9), "limit switch")
	assert.Contains(t, AlarmText(999), "999")
	assert.Contains(t, ErrorText(20), "Unsupported")
	assert.Contains(t, ErrorText(999), "999")
}
