package cncstream

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dustwave-cnc/cncstream/metrics"
	"github.com/dustwave-cnc/cncstream/simulator"
	"github.com/dustwave-cnc/cncstream/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Controller is the consumer-facing session (spec §6's "Consumer API").
// It owns the transport, the IO goroutine, and all streaming state
// (spec §3 "Ownership"). Exactly one consumer goroutine and one IO
// goroutine interact with it; there is no other parallelism.
type Controller struct {
	cfg    Config
	log    *zap.Logger
	mbox   *Mailbox
	sessID uuid.UUID

	rt        realtimeMailbox
	strCmds   stringQueue
	overrides overrideQueue
	stream    streamState

	running   atomic.Bool
	connected atomic.Bool
	errorLatch atomic.Bool
	firmware  atomic.Int32

	cancel context.CancelFunc
	group  *errgroup.Group

	xport   transport.Stream
	metrics *metrics.Registry
}

// SetMetrics attaches a Prometheus registry the IO thread reports to.
// Optional; a nil Controller.metrics (the default) simply skips
// reporting with no overhead beyond a nil check.
func (c *Controller) SetMetrics(r *metrics.Registry) { c.metrics = r }

// New creates a Controller. mailbox is the consumer-owned event channel;
// logger may be nil (a no-op logger is used).
func New(cfg Config, mailbox *Mailbox, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailbox == nil {
		mailbox = NewMailbox(cfg.MailboxDepth)
	}
	return &Controller{cfg: cfg, log: logger, mbox: mailbox}
}

// Mailbox returns the event channel this controller posts to.
func (c *Controller) Mailbox() *Mailbox { return c.mbox }

// IsConnected reports the last observed connection state (atomic,
// lock-free read per spec §5).
func (c *Controller) IsConnected() bool { return c.connected.Load() }

// FirmwareType reports the detected firmware family, valid once
// IsConnected() is true.
func (c *Controller) FirmwareType() FirmwareType { return FirmwareType(c.firmware.Load()) }

// Connect opens a serial connection to device at baud and starts the IO
// goroutine. Mirrors spec §4.7's handshake and §5's two-thread model.
func (c *Controller) Connect(device string, baud int) error {
	c.Disconnect()

	st, err := transport.OpenSerial(device, baud)
	if err != nil {
		return &connectError{op: "open " + device, err: err}
	}
	return c.startIOThread(st)
}

// ConnectTCP connects over TCP (grblHAL/FluidNC boards with Ethernet or
// WiFi), e.g. "192.168.1.50:23".
func (c *Controller) ConnectTCP(addr string) error {
	c.Disconnect()

	st, err := transport.DialTCP(addr, c.cfg.HandshakeBannerTimeout)
	if err != nil {
		return &connectError{op: "dial " + addr, err: err}
	}
	return c.startIOThread(st)
}

// ConnectSimulator starts the built-in simulator in place of a real
// controller. Everything above the transport interface is identical
// (spec §4.8's observational equivalence).
func (c *Controller) ConnectSimulator() error {
	c.Disconnect()
	return c.startIOThread(simulator.New())
}

func (c *Controller) startIOThread(st transport.Stream) error {
	c.sessID = uuid.New()
	c.xport = st
	c.running.Store(true)
	c.connected.Store(false)
	c.errorLatch.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	group, _ := errgroup.WithContext(ctx)
	c.group = group

	log := c.log.With(zap.String("session", c.sessID.String()), zap.String("device", st.Device()))
	group.Go(func() error {
		return runIOThread(ctx, c, st, log)
	})
	return nil
}

// Disconnect sets running=false, joins the IO goroutine, then closes the
// transport (spec §5 "Cancellation").
func (c *Controller) Disconnect() {
	if !c.running.Swap(false) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.group != nil {
		if err := c.group.Wait(); err != nil {
			c.log.Warn("io thread terminated with error", zap.Error(err))
		}
	}
	if c.xport != nil {
		c.xport.Close()
	}
	c.connected.Store(false)
	c.rt.drain()
	c.strCmds.drain()
	c.overrides.drain()
	c.stream.stop()
	c.stream.clearInFlight()
}

// StartStream begins streaming lines under character-counting flow
// control (spec §4.6). Refused while the error latch is set.
func (c *Controller) StartStream(lines []string) error {
	if c.errorLatch.Load() {
		c.log.Error("cannot start stream while in error state")
		c.mbox.post(Event{Kind: EventError, Message: "Cannot start new job: previous streaming error must be acknowledged first"})
		return fmt.Errorf("streaming error latch set; call AcknowledgeError first")
	}
	c.stream.start(lines)
	return nil
}

// StopStream clears streaming and posts a feed hold (spec §4.6).
func (c *Controller) StopStream() {
	c.stream.stop()
	c.FeedHold()
}

// AcknowledgeError clears the error latch set by a mid-stream error:N.
func (c *Controller) AcknowledgeError() {
	c.errorLatch.Store(false)
	c.log.Info("streaming error acknowledged by operator")
}

// AcknowledgeToolChange resumes a stream paused on an M6 line.
func (c *Controller) AcknowledgeToolChange() {
	c.stream.acknowledgeToolChange()
}

// StreamProgress snapshots the current stream's progress (spec §3).
func (c *Controller) StreamProgress() StreamProgress { return c.stream.progress() }

// FeedHold, CycleStart, SoftReset, JogCancel post real-time bits; the IO
// thread dispatches them no later than one iteration later (spec §5).
func (c *Controller) FeedHold() {
	c.rt.post(RTFeedHold)
	c.stream.setHeld(true)
}

func (c *Controller) CycleStart() {
	c.rt.post(RTCycleStart)
	c.stream.setHeld(false)
}

func (c *Controller) SoftReset() {
	c.rt.post(RTSoftReset)
	c.stream.stop()
	c.stream.setHeld(false)
	c.errorLatch.Store(false)
	c.stream.clearInFlight()
}

func (c *Controller) JogCancel() { c.rt.post(RTJogCancel) }

func (c *Controller) SetFeedOverride(percent int) {
	c.overrides.push(encodeFeedOverride(percent))
}

func (c *Controller) SetRapidOverride(percent int) {
	c.overrides.push(encodeRapidOverride(percent))
}

func (c *Controller) SetSpindleOverride(percent int) {
	c.overrides.push(encodeSpindleOverride(percent))
}

// SendCommand queues an arbitrary line (e.g. ad hoc G-code) for the IO
// thread to write.
func (c *Controller) SendCommand(cmd string) {
	c.strCmds.push(cmd + "\n")
}

// Unlock sends $X.
func (c *Controller) Unlock() {
	c.strCmds.push("$X\n")
}

type connectError struct {
	op  string
	err error
}

func (e *connectError) Error() string { return e.op + ": " + e.err.Error() }
func (e *connectError) Unwrap() error { return e.err }
