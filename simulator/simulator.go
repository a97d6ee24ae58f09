// Package simulator implements a built-in, in-process stand-in for a
// real GRBL-family controller: it speaks the same line-oriented wire
// protocol (package protocol) over the same transport.Stream interface
// a serial port or TCP socket implements, so a Controller session cannot
// tell the difference above the transport boundary.
package simulator

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/dustwave-cnc/cncstream/protocol"
	"github.com/dustwave-cnc/cncstream/transport"
)

const banner = "Grbl 1.1h [Simulator]"

// simState is the simulated machine's full modal and physical state,
// mirroring the original desktop controller's SimState.
type simState struct {
	machineState protocol.MachineState

	machinePos Vec3
	targetPos  Vec3

	feedRate     float64
	spindleSpeed float64

	feedOverride    int
	rapidOverride   int
	spindleOverride int
	isRapid         bool

	absoluteMode bool
	metricMode   bool

	activeWCS  int
	wcsOffsets [6]Vec3
	g28Home    Vec3
	g30Home    Vec3
	g92Offset  Vec3

	spindleDir                int
	coolantMist, coolantFlood bool

	toolNumber       int
	toolLengthOffset float64
	motionMode       int

	settings [256]float64
}

// Vec3 mirrors protocol.Vec3; kept distinct so simulator math isn't
// coupled to the wire-format package's type beyond what buildStatus
// needs to hand off.
type Vec3 struct{ X, Y, Z float64 }

func (v Vec3) sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) toProtocol() protocol.Vec3 { return protocol.Vec3{X: v.X, Y: v.Y, Z: v.Z} }

// Simulator implements transport.Stream. Every mutation of sim is made
// under mu: commands are processed synchronously inside Write/WriteByte
// and motion advances in tickLoop. There is no separate inbound command
// queue: a write from the IO thread is fully
// processed (and its "ok"/status response enqueued) before Write returns,
// the same way a real controller's processing latency is invisible to
// the character-counting engine above it.
type Simulator struct {
	mu  sync.Mutex
	sim simState

	writeBuf bytes.Buffer

	out    chan string
	stopCh chan struct{}
	wg     sync.WaitGroup

	closed bool
	state  transport.ConnectionState

	lastTick time.Time
}

// New creates a running Simulator seeded with the default settings table
// a freshly flashed classic-GRBL board reports (spec's supplemented
// "$$ settings" feature).
func New() *Simulator {
	s := &Simulator{
		out:    make(chan string, 256),
		stopCh: make(chan struct{}),
		state:  transport.Connected,
	}
	s.sim.machineState = protocol.StateIdle
	s.sim.feedOverride = 100
	s.sim.rapidOverride = 100
	s.sim.spindleOverride = 100
	s.sim.absoluteMode = true
	s.sim.metricMode = true
	s.seedDefaultSettings()
	s.lastTick = time.Now()

	s.out <- banner

	s.wg.Add(1)
	go s.tickLoop()
	return s
}

func (s *Simulator) seedDefaultSettings() {
	set := map[int]float64{
		0: 10, 1: 25, 2: 0, 3: 0, 4: 0, 5: 0, 6: 0,
		10: 1, 11: 0.010, 12: 0.002, 13: 0,
		20: 0, 21: 0, 22: 1, 23: 0, 24: 25, 25: 500, 26: 250, 27: 1,
		30: 24000, 31: 0, 32: 0,
		100: 800, 101: 800, 102: 800,
		110: 5000, 111: 5000, 112: 3000,
		120: 500, 121: 500, 122: 200,
		130: 500, 131: 500, 132: 100,
	}
	for id, val := range set {
		s.sim.settings[id] = val
	}
}

// tickLoop advances simulated motion every 20ms, independent of any
// status query — a real machine keeps moving whether or not anyone is
// watching.
func (s *Simulator) tickLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			dt := now.Sub(s.lastTick).Seconds()
			s.lastTick = now
			s.advancePosition(dt)
			s.mu.Unlock()
		}
	}
}

func (s *Simulator) emit(line string) {
	select {
	case s.out <- line:
	default:
	}
}

// Write accepts one or more newline-terminated lines (a queued command or
// a streamed program line — M6 lines never reach here, spec §4.6
// intercepts those above the transport boundary). Each complete line is
// processed synchronously before Write returns.
func (s *Simulator) Write(data []byte) (int, error) {
	s.writeBuf.Write(data)
	for {
		buf := s.writeBuf.Bytes()
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(buf[:idx]), "\r\n")
		s.writeBuf.Next(idx + 1)
		if line != "" {
			s.mu.Lock()
			s.processCommand(line)
			s.mu.Unlock()
		}
	}
	return len(data), nil
}

// WriteByte handles the single-byte real-time commands and pre-expanded
// override bytes the IO thread writes outside the line-buffered path.
func (s *Simulator) WriteByte(b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch b {
	case protocol.CmdSoftReset:
		s.sim.machineState = protocol.StateIdle
		s.sim.targetPos = s.sim.machinePos
		s.emit(banner)
		return nil
	case protocol.CmdStatusQuery:
		s.emit(s.buildStatus())
		return nil
	case protocol.CmdFeedHold:
		if s.sim.machineState == protocol.StateRun || s.sim.machineState == protocol.StateJog {
			s.sim.machineState = protocol.StateHold
		}
		return nil
	case protocol.CmdCycleStart:
		if s.sim.machineState == protocol.StateHold {
			s.sim.machineState = protocol.StateRun
		}
		return nil
	case protocol.CmdJogCancel:
		if s.sim.machineState == protocol.StateJog {
			s.sim.targetPos = s.sim.machinePos
			s.sim.machineState = protocol.StateIdle
		}
		return nil
	}

	applyOverrideByte(&s.sim, b)
	return nil
}

func applyOverrideByte(sim *simState, b byte) {
	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	switch b {
	case protocol.CmdFeed100:
		sim.feedOverride = 100
	case protocol.CmdFeedInc10:
		sim.feedOverride = clamp(sim.feedOverride+10, 10, 200)
	case protocol.CmdFeedDec10:
		sim.feedOverride = clamp(sim.feedOverride-10, 10, 200)
	case protocol.CmdFeedInc1:
		sim.feedOverride = clamp(sim.feedOverride+1, 10, 200)
	case protocol.CmdFeedDec1:
		sim.feedOverride = clamp(sim.feedOverride-1, 10, 200)
	case protocol.CmdRapid100:
		sim.rapidOverride = 100
	case protocol.CmdRapid50:
		sim.rapidOverride = 50
	case protocol.CmdRapid25:
		sim.rapidOverride = 25
	case protocol.CmdSpindle100:
		sim.spindleOverride = 100
	case protocol.CmdSpindleInc10:
		sim.spindleOverride = clamp(sim.spindleOverride+10, 10, 200)
	case protocol.CmdSpindleDec10:
		sim.spindleOverride = clamp(sim.spindleOverride-10, 10, 200)
	case protocol.CmdSpindleInc1:
		sim.spindleOverride = clamp(sim.spindleOverride+1, 10, 200)
	case protocol.CmdSpindleDec1:
		sim.spindleOverride = clamp(sim.spindleOverride-1, 10, 200)
	}
}

// ReadLine blocks for up to timeout for the next queued response line.
func (s *Simulator) ReadLine(timeout time.Duration) (string, bool, error) {
	select {
	case line := <-s.out:
		return line, true, nil
	case <-time.After(timeout):
		return "", false, nil
	}
}

// Drain is a no-op: every response is already fully formed by the time
// it's queued on out, there is no underlying transmit buffer to flush.
func (s *Simulator) Drain() error { return nil }

func (s *Simulator) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.state = transport.Closed
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	return nil
}

func (s *Simulator) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Simulator) Device() string { return "simulator" }

func (s *Simulator) ConnectionState() transport.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
