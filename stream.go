package cncstream

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustwave-cnc/cncstream/protocol"
)

// streamState groups every field the flow-control invariants in spec §8
// relate to each other: program, sendIndex, ackIndex, sentLengths,
// bufferUsed, held, toolChangePending, errorCount, startTime. Spec §9
// calls this out explicitly — these are guarded by one lock, not
// scattered atomics, because the invariants cannot be preserved
// piecewise.
type streamState struct {
	mu sync.Mutex

	program []string
	sendIndex int
	ackIndex  int

	sentLengths []int
	bufferUsed  int

	held              bool
	toolChangePending bool
	errorCount        int
	startTime         time.Time

	streaming bool
}

// defaultRXBufferSize reflects the target firmware's RX buffer; classic GRBL
// uses 128 (spec §4.6, §6).
const defaultRXBufferSize = 128

func (s *streamState) start(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.program = lines
	s.sendIndex = 0
	s.ackIndex = 0
	s.sentLengths = nil
	s.bufferUsed = 0
	s.errorCount = 0
	s.held = false
	s.toolChangePending = false
	s.startTime = time.Now()
	s.streaming = true
}

func (s *streamState) stop() {
	s.mu.Lock()
	s.streaming = false
	s.mu.Unlock()
}

func (s *streamState) isStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

func (s *streamState) progress() StreamProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StreamProgress{
		TotalLines:     len(s.program),
		AckedLines:     s.ackIndex,
		ErrorCount:     s.errorCount,
		ElapsedSeconds: time.Since(s.startTime).Seconds(),
	}
}

func (s *streamState) acknowledgeToolChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.toolChangePending {
		return
	}
	s.toolChangePending = false
	if s.sendIndex < len(s.program) {
		s.sendIndex++
	}
}

// whole-token M6/M06 detection (spec §4.6): uppercase a stripped copy
// (comments removed), search for M6/M06 as a whole token (the character
// after must not be a digit, so M60 does not match), and if found parse
// an optional T<int> tool number.
func detectM6(line string) (isM6 bool, toolNumber int) {
	upper := strings.ToUpper(line)
	if i := strings.IndexByte(upper, '('); i >= 0 {
		upper = upper[:i]
	}
	if i := strings.IndexByte(upper, ';'); i >= 0 {
		upper = upper[:i]
	}

	matchWhole := func(token string) bool {
		idx := strings.Index(upper, token)
		if idx < 0 {
			return false
		}
		after := idx + len(token)
		return after >= len(upper) || upper[after] < '0' || upper[after] > '9'
	}

	if matchWhole("M6") || matchWhole("M06") {
		isM6 = true
		if tIdx := strings.IndexByte(upper, 'T'); tIdx >= 0 {
			toolNumber = parseLeadingInt(upper[tIdx+1:])
		}
	}
	return isM6, toolNumber
}

func parseLeadingInt(s string) int {
	end := 0
	for end < len(s) && (s[end] == '-' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// sendResult reports what the send loop accomplished this call, so the
// caller (the IO loop) can fire the right callbacks without the stream
// mutex held.
type sendResult struct {
	sentLines    []sentLine
	toolChange   *int // non-nil tool number when a tool change was newly detected
}

type sentLine struct {
	index int
	text  string
}

// planSend is the send loop from spec §4.6: while streaming and not
// held/gated on a tool change, transmit as many lines as fit in the
// firmware's RX buffer. Returns what was sent (and any newly-detected
// tool change) for the caller to report via callbacks and actually write
// to the transport — this function only mutates stream accounting; the
// IO loop performs the write so a failed write can be retried without
// this function needing to know about transports at all.
func (s *streamState) planSend(rxBufferSize int) sendResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result sendResult
	if !s.streaming || s.held || s.toolChangePending {
		return result
	}

	for s.sendIndex < len(s.program) {
		line := s.program[s.sendIndex]

		if isM6, toolNumber := detectM6(line); isM6 {
			s.toolChangePending = true
			tn := toolNumber
			result.toolChange = &tn
			return result
		}

		lineLen := len(line) + 1
		if s.bufferUsed+lineLen > rxBufferSize {
			break
		}

		s.sentLengths = append(s.sentLengths, lineLen)
		s.bufferUsed += lineLen
		result.sentLines = append(result.sentLines, sentLine{index: s.sendIndex, text: line})
		s.sendIndex++
	}
	return result
}

// ackResult is what processAck produces for the IO loop to report.
type ackResult struct {
	ack            LineAck
	streamingErr   *StreamingError
	needsSoftReset bool
	completed      bool
	progress       *StreamProgress
}

// processAck implements spec §4.6's ack handling for one received `ok`
// or `error:N` line.
func (s *streamState) processAck(line protocol.Line) ackResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sentLengths) > 0 {
		s.bufferUsed -= s.sentLengths[0]
		s.sentLengths = s.sentLengths[1:]
	}

	ack := LineAck{LineIndex: s.ackIndex, OK: line.Kind == protocol.LineOk}

	if !ack.OK {
		ack.ErrorCode = line.Code
		ack.ErrorMessage = protocol.ErrorText(line.Code)
		s.errorCount++

		if s.streaming {
			streamErr := &StreamingError{
				LineIndex:     ack.LineIndex,
				ErrorCode:     ack.ErrorCode,
				ErrorMessage:  ack.ErrorMessage,
				LinesInFlight: len(s.sentLengths),
			}
			if ack.LineIndex >= 0 && ack.LineIndex < len(s.program) {
				streamErr.FailedLine = s.program[ack.LineIndex]
			}

			s.streaming = false
			s.held = false
			s.sentLengths = nil
			s.bufferUsed = 0

			return ackResult{ack: ack, streamingErr: streamErr, needsSoftReset: true}
		}
	}

	s.ackIndex++

	result := ackResult{ack: ack}
	if s.streaming && s.ackIndex >= len(s.program) {
		s.streaming = false
		result.completed = true
	}
	progress := StreamProgress{
		TotalLines:     len(s.program),
		AckedLines:     s.ackIndex,
		ErrorCount:     s.errorCount,
		ElapsedSeconds: time.Since(s.startTime).Seconds(),
	}
	result.progress = &progress
	return result
}

// bufferUsedSnapshot reports the current character-counting buffer
// occupancy, used only for metrics reporting.
func (s *streamState) bufferUsedSnapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferUsed
}

func (s *streamState) setHeld(held bool) {
	s.mu.Lock()
	s.held = held
	s.mu.Unlock()
}

// clearInFlight drops sentLengths/bufferUsed accounting, used both by
// an explicit softReset() call and by disconnect handling.
func (s *streamState) clearInFlight() {
	s.mu.Lock()
	s.sentLengths = nil
	s.bufferUsed = 0
	s.mu.Unlock()
}
