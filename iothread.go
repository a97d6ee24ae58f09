package cncstream

import (
	"context"
	"time"

	"github.com/dustwave-cnc/cncstream/protocol"
	"github.com/dustwave-cnc/cncstream/transport"
	"go.uber.org/zap"
)

// runIOThread is the IO goroutine's entire body (spec §4.7, §5). It owns
// the transport exclusively: no other goroutine ever calls Write/ReadLine
// on st. It communicates outward only through c.mbox (events) and inward
// only through c.rt/c.strCmds/c.overrides/c.stream (queues it drains).
func runIOThread(ctx context.Context, c *Controller, st transport.Stream, log *zap.Logger) error {
	fw, version, err := handshake(ctx, c.cfg, st, log)
	if err != nil {
		log.Warn("handshake failed", zap.Error(err))
		c.mbox.post(Event{Kind: EventError, Message: "Failed to connect: " + err.Error()})
		st.Close()
		return err
	}

	c.firmware.Store(int32(fw))
	c.connected.Store(true)
	log.Info("connected", zap.String("firmware", fw.String()), zap.String("version", version))
	c.mbox.post(Event{Kind: EventConnectionChanged, Connected: true, Version: version})

	consecutiveTimeouts := 0
	statusPending := false
	pollInterval := time.Duration(c.cfg.StatusPollIntervalMs) * time.Millisecond
	nextPoll := time.Now().Add(pollInterval)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if softReset := dispatchRealtime(c, st, log); softReset {
			continue
		}

		dispatchOverrides(c, st, log)
		dispatchStringQueue(c, st, log)
		dispatchStreamSend(c, st, log)

		if now := time.Now(); !now.Before(nextPoll) {
			if werr := st.WriteByte(protocol.CmdStatusQuery); werr != nil {
				return handleDisconnect(c, log, werr)
			}
			nextPoll = now.Add(pollInterval)
			statusPending = true
		}

		line, ok, rerr := st.ReadLine(c.cfg.ReadTimeout)
		if rerr != nil {
			return handleDisconnect(c, log, rerr)
		}
		if !ok {
			if statusPending {
				consecutiveTimeouts++
				if consecutiveTimeouts >= c.cfg.MaxConsecutiveStatusTimeouts {
					return handleDisconnect(c, log, errConnectionLost)
				}
			}
			continue
		}
		consecutiveTimeouts = 0
		statusPending = false
		c.mbox.post(Event{Kind: EventRawLine, RawLine: line})
		dispatchLine(c, line, log)
	}
}

// dispatchRealtime drains the real-time mailbox and writes single bytes
// directly to the transport. A pending soft reset gates everything else
// this iteration (spec §9): it is written and the caller is told to skip
// straight to the next loop iteration rather than also flushing overrides,
// strings, or streamed lines in the same pass.
func dispatchRealtime(c *Controller, st transport.Stream, log *zap.Logger) (softReset bool) {
	bits := c.rt.drain()
	if bits == 0 {
		return false
	}
	if bits.has(RTSoftReset) {
		if err := st.WriteByte(protocol.CmdSoftReset); err != nil {
			log.Warn("failed writing soft reset", zap.Error(err))
		}
		c.stream.clearInFlight()
		return true
	}
	if bits.has(RTFeedHold) {
		st.WriteByte(protocol.CmdFeedHold)
	}
	if bits.has(RTCycleStart) {
		st.WriteByte(protocol.CmdCycleStart)
	}
	if bits.has(RTJogCancel) {
		st.WriteByte(protocol.CmdJogCancel)
	}
	return false
}

func dispatchOverrides(c *Controller, st transport.Stream, log *zap.Logger) {
	for _, cmd := range c.overrides.drain() {
		for _, b := range cmd.bytes {
			if err := st.WriteByte(b); err != nil {
				log.Warn("failed writing override byte", zap.Error(err))
				return
			}
		}
	}
}

func dispatchStringQueue(c *Controller, st transport.Stream, log *zap.Logger) {
	for _, line := range c.strCmds.drain() {
		if _, err := st.Write([]byte(line)); err != nil {
			log.Warn("failed writing queued command", zap.String("line", line), zap.Error(err))
			return
		}
	}
}

// dispatchStreamSend asks the streaming engine what to send next and
// performs the actual transport writes (spec §4.6). A write failure here
// is logged and left for the next ReadLine to surface as a disconnect;
// lines already accounted for in sentLengths are not un-counted, matching
// the character-counting engine's design of trusting planSend's accounting
// once made.
func dispatchStreamSend(c *Controller, st transport.Stream, log *zap.Logger) {
	result := c.stream.planSend(c.cfg.RXBufferSize)
	for _, sl := range result.sentLines {
		if _, err := st.Write([]byte(sl.text + "\n")); err != nil {
			log.Warn("failed writing program line", zap.Int("index", sl.index), zap.Error(err))
			return
		}
		c.mbox.post(Event{Kind: EventRawLine, RawLine: sl.text, Sent: true})
	}
	if result.toolChange != nil {
		c.mbox.post(Event{Kind: EventToolChange, ToolNumber: *result.toolChange})
	}
}

// dispatchLine classifies one received line and reacts to it (spec §4.6,
// §4.7): status reports update the cached MachineStatus, ok/error lines
// drive the streaming engine's ack accounting, ALARM lines stop streaming
// without setting the error latch, and [MSG:...] bodies are posted as
// EventError (other bracketed lines only reach the consumer as raw lines).
func dispatchLine(c *Controller, raw string, log *zap.Logger) {
	classified := protocol.Classify(raw)
	switch classified.Kind {
	case protocol.LineStatus:
		status := protocol.ParseStatusReport(raw)
		c.mbox.post(Event{Kind: EventStatusUpdate, Status: status})

	case protocol.LineOk, protocol.LineError:
		if !c.stream.isStreaming() {
			return
		}
		result := c.stream.processAck(classified)
		c.mbox.post(Event{Kind: EventLineAcked, Ack: result.ack})
		if c.metrics != nil {
			if result.ack.OK {
				c.metrics.LinesAcked.Inc()
			} else {
				c.metrics.LineErrors.Inc()
			}
			c.metrics.BufferOccupancy.Set(float64(c.stream.bufferUsedSnapshot()))
		}
		if result.streamingErr != nil {
			c.errorLatch.Store(true)
			log.Error("streaming error", zap.Int("line", result.streamingErr.LineIndex),
				zap.Int("code", result.streamingErr.ErrorCode))
			c.mbox.post(Event{Kind: EventStreamingError, StreamErr: *result.streamingErr})
		}
		if result.progress != nil {
			c.mbox.post(Event{Kind: EventProgressUpdate, Progress: *result.progress})
		}
		if result.completed {
			c.mbox.post(Event{Kind: EventProgressUpdate, Progress: c.stream.progress()})
		}

	case protocol.LineAlarm:
		c.stream.stop()
		log.Error("alarm", zap.Int("code", classified.Code))
		c.mbox.post(Event{Kind: EventAlarm, AlarmCode: classified.Code, AlarmText: protocol.AlarmText(classified.Code)})

	case protocol.LineBracketed:
		if classified.Tag == "MSG" {
			c.mbox.post(Event{Kind: EventError, Message: classified.Payload})
		}
	}
}

var errConnectionLost = &connectError{op: "connection", err: errTimeoutExceeded{}}

type errTimeoutExceeded struct{}

func (errTimeoutExceeded) Error() string { return "exceeded max consecutive status timeouts" }

// handleDisconnect tears down streaming state and reports the loss of
// connection upward; it never closes the transport itself (Disconnect
// owns that) so a retried read can't race a close.
func handleDisconnect(c *Controller, log *zap.Logger, err error) error {
	wasStreaming := c.stream.isStreaming()
	c.stream.stop()
	c.stream.clearInFlight()
	c.connected.Store(false)
	if c.metrics != nil {
		c.metrics.Reconnects.Inc()
	}
	log.Warn("disconnected", zap.Error(err))
	c.mbox.post(Event{Kind: EventConnectionChanged, Connected: false, Version: ""})
	if wasStreaming {
		c.mbox.post(Event{Kind: EventError, Message: "Connection lost while streaming: " + err.Error()})
	}
	return err
}

// handshake implements spec §4.7's connect sequence: soft-reset and drain
// the transport so a classic GRBL board re-emits its startup banner, then
// wait up to HandshakeBannerTimeout for a recognizable one; if none
// arrives (FluidNC stays silent across a reconnect-without-reset), probe
// with a "?\n" status query and accept any well-formed status report as
// proof of life within HandshakeProbeTimeout.
func handshake(ctx context.Context, cfg Config, st transport.Stream, log *zap.Logger) (FirmwareType, string, error) {
	if err := st.WriteByte(protocol.CmdSoftReset); err != nil {
		return FirmwareUnknown, "", err
	}
	if err := st.Drain(); err != nil {
		return FirmwareUnknown, "", err
	}

	deadline := time.Now().Add(cfg.HandshakeBannerTimeout)
	for {
		select {
		case <-ctx.Done():
			return FirmwareUnknown, "", ctx.Err()
		default:
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		line, ok, err := st.ReadLine(remaining)
		if err != nil {
			return FirmwareUnknown, "", err
		}
		if !ok {
			continue
		}
		if protocol.IsBanner(line) {
			log.Debug("banner received", zap.String("banner", line))
			return firmwareFromBanner(line), line, nil
		}
	}

	log.Debug("no banner seen, falling back to status probe")
	if _, err := st.Write([]byte{protocol.CmdStatusQuery, '\n'}); err != nil {
		return FirmwareUnknown, "", err
	}
	probeDeadline := time.Now().Add(cfg.HandshakeProbeTimeout)
	for {
		select {
		case <-ctx.Done():
			return FirmwareUnknown, "", ctx.Err()
		default:
		}
		remaining := time.Until(probeDeadline)
		if remaining <= 0 {
			return FirmwareUnknown, "", &connectError{op: "handshake", err: errTimeoutExceeded{}}
		}
		line, ok, err := st.ReadLine(remaining)
		if err != nil {
			return FirmwareUnknown, "", err
		}
		if !ok {
			continue
		}
		if len(line) >= 2 && line[0] == '<' && line[len(line)-1] == '>' {
			return FirmwareFluidNC, "FluidNC (compatible)", nil
		}
	}
}
