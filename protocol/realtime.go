package protocol

// Single-byte real-time commands understood by every GRBL-family firmware.
// These bypass the character-counting buffer entirely and are written
// directly to the transport.
const (
	CmdSoftReset   byte = 0x18
	CmdStatusQuery byte = '?'
	CmdFeedHold    byte = '!'
	CmdCycleStart  byte = '~'
	CmdJogCancel   byte = 0x85
)

// Feed override bytes: reset to 100%, then +-10/+-1 steps.
const (
	CmdFeed100 byte = 0x90
	CmdFeedInc10 byte = 0x91
	CmdFeedDec10 byte = 0x92
	CmdFeedInc1  byte = 0x93
	CmdFeedDec1  byte = 0x94
)

// Rapid override is a single absolute-value byte, not a delta sequence.
const (
	CmdRapid100 byte = 0x95
	CmdRapid50  byte = 0x96
	CmdRapid25  byte = 0x97
)

// Spindle override bytes: reset to 100%, then +-10/+-1 steps.
const (
	CmdSpindle100 byte = 0x99
	CmdSpindleInc10 byte = 0x9A
	CmdSpindleDec10 byte = 0x9B
	CmdSpindleInc1  byte = 0x9C
	CmdSpindleDec1  byte = 0x9D
)
