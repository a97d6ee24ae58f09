package cli

import (
	"fmt"

	"github.com/dustwave-cnc/cncstream"
	"github.com/spf13/viper"
)

// buildConfig maps the bound viper keys onto a cncstream.Config,
// starting from the library's own defaults so an operator only needs to
// override what they care about.
func buildConfig() cncstream.Config {
	cfg := cncstream.DefaultConfig()
	if v := viper.GetInt("rx_buffer"); v > 0 {
		cfg.RXBufferSize = v
	}
	if v := viper.GetInt("poll_ms"); v > 0 {
		cfg.StatusPollIntervalMs = v
	}
	return cfg
}

// printEvents drains a controller's mailbox to stdout until done fires;
// it is meant to run in its own goroutine.
func printEvents(c *cncstream.Controller, done <-chan struct{}) {
	for {
		select {
		case ev := <-c.Mailbox().Events():
			logEvent(ev)
		case <-done:
			return
		}
	}
}

func logEvent(ev cncstream.Event) {
	switch ev.Kind {
	case cncstream.EventConnectionChanged:
		if ev.Connected {
			fmt.Printf("connected: %s\n", ev.Version)
		} else {
			fmt.Println("disconnected")
		}
	case cncstream.EventStatusUpdate:
		s := ev.Status
		fmt.Printf("status: %s MPos(%.3f,%.3f,%.3f) WPos(%.3f,%.3f,%.3f) F%.0f S%.0f\n",
			s.State, s.MachinePos.X, s.MachinePos.Y, s.MachinePos.Z,
			s.WorkPos.X, s.WorkPos.Y, s.WorkPos.Z, s.FeedRate, s.SpindleSpeed)
	case cncstream.EventRawLine:
		fmt.Printf("< %s\n", ev.RawLine)
	case cncstream.EventLineAcked:
		if !ev.Ack.OK {
			fmt.Printf("line %d: error %d (%s)\n", ev.Ack.LineIndex, ev.Ack.ErrorCode, ev.Ack.ErrorMessage)
		}
	case cncstream.EventProgressUpdate:
		p := ev.Progress
		fmt.Printf("progress: %d/%d lines (%.1fs)\n", p.AckedLines, p.TotalLines, p.ElapsedSeconds)
	case cncstream.EventError:
		fmt.Printf("error: %s\n", ev.Message)
	case cncstream.EventAlarm:
		fmt.Printf("ALARM %d: %s\n", ev.AlarmCode, ev.AlarmText)
	case cncstream.EventStreamingError:
		e := ev.StreamErr
		fmt.Printf("streaming error at line %d: %d (%s), %d lines in flight\n",
			e.LineIndex, e.ErrorCode, e.ErrorMessage, e.LinesInFlight)
	case cncstream.EventToolChange:
		fmt.Printf("tool change requested: T%d (call AcknowledgeToolChange to resume)\n", ev.ToolNumber)
	}
}
