package cncstream

import "time"

// Config holds the tunables spec §6 names. The core library never reads
// a file or an environment variable for these — that's cmd/cncctl's job
// (via viper); a Config value here is just data.
type Config struct {
	// StatusPollIntervalMs is how often the IO loop polls for a status
	// report. Default 200ms = 5Hz.
	StatusPollIntervalMs int

	// RXBufferSize reflects the target firmware's RX buffer in bytes.
	// Classic GRBL uses 128; some grblHAL builds report larger buffers
	// via $I but this module does not auto-detect it (spec §6).
	RXBufferSize int

	// MaxConsecutiveStatusTimeouts is the threshold for declaring the
	// connection lost after statusPending goes unanswered. The count
	// advances once per ReadTimeout that expires while a poll is
	// outstanding, so the default of 25 at the 20ms read timeout is
	// about 0.5s of silence.
	MaxConsecutiveStatusTimeouts int

	// ReadTimeout is the per-iteration readLine timeout (spec §4.7 step
	// 2); 20ms bounds real-time command dispatch latency.
	ReadTimeout time.Duration

	// HandshakeBannerTimeout and HandshakeProbeTimeout bound the two
	// phases of connect()'s handshake (spec §4.7).
	HandshakeBannerTimeout time.Duration
	HandshakeProbeTimeout  time.Duration

	// MailboxDepth sizes the consumer-facing event channel.
	MailboxDepth int
}

// DefaultConfig returns the values spec §6 names as defaults.
func DefaultConfig() Config {
	return Config{
		StatusPollIntervalMs:         200,
		RXBufferSize:                 defaultRXBufferSize,
		MaxConsecutiveStatusTimeouts: 25,
		ReadTimeout:                  20 * time.Millisecond,
		HandshakeBannerTimeout:       5 * time.Second,
		HandshakeProbeTimeout:        2 * time.Second,
		MailboxDepth:                 256,
	}
}
