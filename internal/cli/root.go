// Package cli defines the sparkeye command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagDebug  bool
	flagMock   bool
	flagNoUI   bool
)

const defaultConfigPath = "config/sparkeye.yaml"

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sparkeye",
		Short: "Watches a live camera feed and verifies circuit assembly steps",
		Long: "sparkeye watches a live camera feed of a circuit being assembled, " +
			"waits for the scene to hold still, and asks a vision model whether " +
			"the current step looks right.",
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath, "path to configuration file")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
