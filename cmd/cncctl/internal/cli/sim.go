package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustwave-cnc/cncstream"
	"github.com/spf13/cobra"
)

func newSimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sim",
		Short: "Run an interactive session against the built-in simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cncstream.New(buildConfig(), nil, logger)
			if err := c.ConnectSimulator(); err != nil {
				return fmt.Errorf("starting simulator: %w", err)
			}
			defer c.Disconnect()

			done := make(chan struct{})
			go printEvents(c, done)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			fmt.Println("simulator running, Ctrl-C to exit")
			<-sigCh
			close(done)
			return nil
		},
	}
}
