package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	logger  *zap.Logger
)

// Execute builds and runs the cncctl root command.
func Execute() error {
	root := newRootCmd()
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cncctl",
		Short: "Drive a GRBL-family CNC controller from the command line",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			logger = l
			return initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.cncctl.yaml)")
	cmd.PersistentFlags().Int("baud", 115200, "serial baud rate")
	cmd.PersistentFlags().Int("rx-buffer", 128, "firmware RX buffer size in bytes")
	cmd.PersistentFlags().Int("poll-ms", 200, "status poll interval in milliseconds")
	_ = viper.BindPFlag("baud", cmd.PersistentFlags().Lookup("baud"))
	_ = viper.BindPFlag("rx_buffer", cmd.PersistentFlags().Lookup("rx-buffer"))
	_ = viper.BindPFlag("poll_ms", cmd.PersistentFlags().Lookup("poll-ms"))

	cmd.AddCommand(newPortsCmd())
	cmd.AddCommand(newConnectCmd())
	cmd.AddCommand(newStreamCmd())
	cmd.AddCommand(newSimCmd())
	return cmd
}

func initConfig() error {
	viper.SetEnvPrefix("CNCCTL")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".cncctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}
