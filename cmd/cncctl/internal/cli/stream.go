package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustwave-cnc/cncstream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStreamCmd() *cobra.Command {
	var useSim bool
	cmd := &cobra.Command{
		Use:   "stream <device> <gcode-file>",
		Short: "Stream a G-code file to a controller or the simulator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, path := args[0], args[1]
			lines, err := readProgram(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			c := cncstream.New(buildConfig(), nil, logger)
			if useSim {
				if err := c.ConnectSimulator(); err != nil {
					return fmt.Errorf("starting simulator: %w", err)
				}
			} else if err := c.Connect(device, viper.GetInt("baud")); err != nil {
				return fmt.Errorf("connecting to %s: %w", device, err)
			}
			defer c.Disconnect()

			done := make(chan struct{})
			finished := make(chan struct{})
			go watchCompletion(c, len(lines), done, finished)
			go printEvents(c, done)

			if err := c.StartStream(lines); err != nil {
				close(done)
				return err
			}
			<-finished
			close(done)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useSim, "sim", false, "stream against the built-in simulator instead of device")
	return cmd
}

func readProgram(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// watchCompletion polls StreamProgress rather than racing the mailbox,
// since the CLI only needs to know "done or not", not every event.
func watchCompletion(c *cncstream.Controller, total int, done, finished chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p := c.StreamProgress()
			if p.TotalLines > 0 && p.AckedLines >= total {
				close(finished)
				return
			}
		}
	}
}
