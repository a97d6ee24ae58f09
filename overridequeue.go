package cncstream

import (
	"sync"

	"github.com/dustwave-cnc/cncstream/protocol"
)

// overrideCommand is an ordered sequence of single bytes encoding a
// series of +1/-1/+10/-10/reset override commands derived from a
// requested percentage delta (spec §3's OverrideCommand, §4.5).
type overrideCommand struct {
	bytes []byte
}

// overrideQueue is the mutex-guarded queue of pre-expanded override byte
// sequences described in spec §4.5.
type overrideQueue struct {
	mu    sync.Mutex
	items []overrideCommand
}

func (q *overrideQueue) push(cmd overrideCommand) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, cmd)
}

func (q *overrideQueue) drain() []overrideCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// encodeFeedOverride builds the canonical byte sequence for a feed
// override percentage: one reset-to-100% byte followed by the minimum
// number of +-10/+-1 bytes whose sum equals percent-100 (spec §4.5,
// scenario S4).
func encodeFeedOverride(percent int) overrideCommand {
	return encodeDeltaOverride(percent, protocol.CmdFeed100,
		protocol.CmdFeedInc10, protocol.CmdFeedDec10,
		protocol.CmdFeedInc1, protocol.CmdFeedDec1)
}

// encodeSpindleOverride is the same encoding, over the spindle override
// byte range.
func encodeSpindleOverride(percent int) overrideCommand {
	return encodeDeltaOverride(percent, protocol.CmdSpindle100,
		protocol.CmdSpindleInc10, protocol.CmdSpindleDec10,
		protocol.CmdSpindleInc1, protocol.CmdSpindleDec1)
}

func encodeDeltaOverride(percent int, reset, inc10, dec10, inc1, dec1 byte) overrideCommand {
	cmd := overrideCommand{bytes: []byte{reset}}
	diff := percent - 100
	for diff >= 10 {
		cmd.bytes = append(cmd.bytes, inc10)
		diff -= 10
	}
	for diff <= -10 {
		cmd.bytes = append(cmd.bytes, dec10)
		diff += 10
	}
	for diff > 0 {
		cmd.bytes = append(cmd.bytes, inc1)
		diff--
	}
	for diff < 0 {
		cmd.bytes = append(cmd.bytes, dec1)
		diff++
	}
	return cmd
}

// encodeRapidOverride is a single absolute-value byte by range, not a
// delta sequence: rapid override only has three legal settings.
func encodeRapidOverride(percent int) overrideCommand {
	switch {
	case percent <= 25:
		return overrideCommand{bytes: []byte{protocol.CmdRapid25}}
	case percent <= 50:
		return overrideCommand{bytes: []byte{protocol.CmdRapid50}}
	default:
		return overrideCommand{bytes: []byte{protocol.CmdRapid100}}
	}
}
