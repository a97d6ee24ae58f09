package cncstream

import (
	"strings"
	"testing"

	"github.com/dustwave-cnc/cncstream/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S1 — Buffer saturation: 20 lines of exactly 20 characters each,
// RX_BUFFER_SIZE=128. 6 lines (6*21=126) fit; a 7th (147) would not.
func TestPlanSendBufferSaturation(t *testing.T) {
	var program []string
	for i := 0; i < 20; i++ {
		program = append(program, strings.Repeat("X", 20))
	}

	var s streamState
	s.start(program)

	result := s.planSend(128)
	require.Len(t, result.sentLines, 6)
	assert.Equal(t, 126, s.bufferUsedSnapshot())

	// A second planSend call before any ack must send nothing more: the
	// 7th line would push bufferUsed to 147 > 128.
	result2 := s.planSend(128)
	assert.Empty(t, result2.sentLines)

	// Acknowledge one line; exactly one more line now fits.
	ack := s.processAck(protocol.Line{Kind: protocol.LineOk})
	assert.True(t, ack.ack.OK)
	assert.Equal(t, 105, s.bufferUsedSnapshot())

	result3 := s.planSend(128)
	require.Len(t, result3.sentLines, 1)
}

// S2 — Mid-stream error terminates the stream, reports the failed line
// and in-flight count, and asks for a soft reset. The start-stream latch
// lives on Controller and is not exercised here.
func TestProcessAckMidStreamError(t *testing.T) {
	program := []string{"G1 X10 F500", "G1 X20", "BADLINE", "G1 X30"}
	var s streamState
	s.start(program)

	result := s.planSend(128)
	require.Len(t, result.sentLines, 4)

	a1 := s.processAck(protocol.Line{Kind: protocol.LineOk})
	assert.True(t, a1.ack.OK)
	a2 := s.processAck(protocol.Line{Kind: protocol.LineOk})
	assert.True(t, a2.ack.OK)

	errAck := s.processAck(protocol.Line{Kind: protocol.LineError, Code: 20})
	require.NotNil(t, errAck.streamingErr)
	assert.Equal(t, 2, errAck.streamingErr.LineIndex)
	assert.Equal(t, 20, errAck.streamingErr.ErrorCode)
	assert.Equal(t, "BADLINE", errAck.streamingErr.FailedLine)
	assert.Equal(t, 1, errAck.streamingErr.LinesInFlight)
	assert.True(t, errAck.needsSoftReset)
	assert.False(t, s.isStreaming())

	// The in-flight G1 X30's ok is not fed to processAck here: the IO loop
	// checks isStreaming() first and drops acks on a terminated stream, so
	// ackIndex stays at the failed line.
	progressBefore := s.progress()
	assert.Equal(t, 2, progressBefore.AckedLines)
}

// S3 — Tool change: M6 gates sendIndex until acknowledged, and is never
// itself transmitted.
func TestPlanSendToolChange(t *testing.T) {
	program := []string{"G0 Z5", "M6 T2", "G0 X0"}
	var s streamState
	s.start(program)

	result := s.planSend(128)
	require.Len(t, result.sentLines, 1)
	assert.Equal(t, "G0 Z5", result.sentLines[0].text)
	// The M6 on line 1 is detected in the same pass, right after line 0.
	require.NotNil(t, result.toolChange)
	assert.Equal(t, 2, *result.toolChange)

	s.processAck(protocol.Line{Kind: protocol.LineOk})

	result2 := s.planSend(128)
	assert.Empty(t, result2.sentLines)
	assert.Nil(t, result2.toolChange)

	// Nothing more is sent while gated, even on repeated calls.
	result3 := s.planSend(128)
	assert.Empty(t, result3.sentLines)
	assert.Nil(t, result3.toolChange)

	s.acknowledgeToolChange()
	result4 := s.planSend(128)
	require.Len(t, result4.sentLines, 1)
	assert.Equal(t, "G0 X0", result4.sentLines[0].text)
}

func TestDetectM6WholeTokenOnly(t *testing.T) {
	isM6, tool := detectM6("M6 T5")
	assert.True(t, isM6)
	assert.Equal(t, 5, tool)

	isM6, _ = detectM6("M60")
	assert.False(t, isM6, "M60 must not match M6")

	isM6, tool = detectM6("G1 X10 M06 T3")
	assert.True(t, isM6)
	assert.Equal(t, 3, tool)

	isM6, _ = detectM6("(comment with M6 inside) G1 X10")
	assert.False(t, isM6, "M6 inside a comment must not trigger a tool change")
}

func TestPlanSendHeldBlocksEverything(t *testing.T) {
	var s streamState
	s.start([]string{"G1 X1"})
	s.setHeld(true)
	result := s.planSend(128)
	assert.Empty(t, result.sentLines)
}
