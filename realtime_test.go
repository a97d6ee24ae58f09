package cncstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRealtimeMailboxCollapsesDuplicates(t *testing.T) {
	var m realtimeMailbox
	m.post(RTFeedHold)
	m.post(RTFeedHold)
	m.post(RTFeedHold)

	bits := m.drain()
	assert.True(t, bits.has(RTFeedHold))
	assert.Equal(t, RTBits(0), m.drain(), "drain must exchange to zero")
}

func TestRealtimeMailboxOrsMultipleBits(t *testing.T) {
	var m realtimeMailbox
	m.post(RTFeedHold)
	m.post(RTJogCancel)

	bits := m.drain()
	assert.True(t, bits.has(RTFeedHold))
	assert.True(t, bits.has(RTJogCancel))
	assert.False(t, bits.has(RTSoftReset))
}
