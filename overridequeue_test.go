package cncstream

import (
	"testing"

	"github.com/dustwave-cnc/cncstream/protocol"
	"github.com/stretchr/testify/assert"
)

// S4 — Override encoding: reset byte first, then the minimum +10/+1 (or
// -10/-1) runs, order fixed.
func TestEncodeFeedOverride145(t *testing.T) {
	cmd := encodeFeedOverride(145)
	assert.Equal(t, []byte{
		protocol.CmdFeed100,
		protocol.CmdFeedInc10, protocol.CmdFeedInc10, protocol.CmdFeedInc10, protocol.CmdFeedInc10,
		protocol.CmdFeedInc1, protocol.CmdFeedInc1, protocol.CmdFeedInc1, protocol.CmdFeedInc1, protocol.CmdFeedInc1,
	}, cmd.bytes)
}

func TestEncodeFeedOverride85(t *testing.T) {
	cmd := encodeFeedOverride(85)
	assert.Equal(t, []byte{
		protocol.CmdFeed100,
		protocol.CmdFeedDec10,
		protocol.CmdFeedDec1, protocol.CmdFeedDec1, protocol.CmdFeedDec1, protocol.CmdFeedDec1, protocol.CmdFeedDec1,
	}, cmd.bytes)
}

func TestEncodeRapidOverrideAbsolute(t *testing.T) {
	assert.Equal(t, []byte{protocol.CmdRapid25}, encodeRapidOverride(10).bytes)
	assert.Equal(t, []byte{protocol.CmdRapid50}, encodeRapidOverride(50).bytes)
	assert.Equal(t, []byte{protocol.CmdRapid100}, encodeRapidOverride(100).bytes)
}

func TestOverrideQueueDrainClears(t *testing.T) {
	var q overrideQueue
	q.push(encodeFeedOverride(110))
	q.push(encodeSpindleOverride(90))
	items := q.drain()
	assert.Len(t, items, 2)
	assert.Empty(t, q.drain())
}
