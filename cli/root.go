package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bassamadnan/mailpilot/config"
)

type rootOptions struct {
	configPath string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          config.AppName,
		Short:        "mailpilot answers customer mail in a Gmail inbox with a language model",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.config/mailpilot/config.yaml)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newOnceCmd(opts))
	cmd.AddCommand(newAuthCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newFiltersCmd(opts))

	cmd.SetErr(os.Stderr)
	cmd.SetOut(os.Stdout)

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
