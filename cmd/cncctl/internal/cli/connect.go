package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustwave-cnc/cncstream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect <device>",
		Short: "Open an interactive session against a real controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device := args[0]
			baud := viper.GetInt("baud")

			c := cncstream.New(buildConfig(), nil, logger)
			if err := c.Connect(device, baud); err != nil {
				return fmt.Errorf("connecting to %s: %w", device, err)
			}
			defer c.Disconnect()

			done := make(chan struct{})
			go printEvents(c, done)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			fmt.Println("type G-code/$-commands, Ctrl-D to exit")
			scanner := bufio.NewScanner(os.Stdin)
			go func() {
				for scanner.Scan() {
					c.SendCommand(scanner.Text())
				}
				close(sigCh)
			}()

			<-sigCh
			close(done)
			return nil
		},
	}
	return cmd
}
