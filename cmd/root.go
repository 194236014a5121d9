package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nethost.io/nethost/cmd/host"
	"nethost.io/nethost/cmd/network"
	"nethost.io/nethost/cmd/serve"
	"nethost.io/nethost/cmd/store"
	"nethost.io/nethost/cmd/version"
	"nethost.io/nethost/internal/log"
)

// NewNetHostCommand creates the nethost root command.
func NewNetHostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nethost",
		Short: "Run and manage a nethost network-host process",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Flush()
		},
		SilenceUsage: true,
	}

	local := flag.NewFlagSet("local", flag.ExitOnError)
	log.InitFlags(local)
	local.VisitAll(func(fl *flag.Flag) {
		fl.Name = strings.Replace(fl.Name, "_", "-", -1)
		cmd.PersistentFlags().AddGoFlag(fl)
	})

	RegisterCommandRecursive(cmd)

	return cmd
}

// RegisterCommandRecursive wires every subcommand package onto cmd.
func RegisterCommandRecursive(cmd *cobra.Command) {
	serve.RegisterCommands(cmd)
	version.RegisterCommands(cmd)
	store.RegisterCommands(cmd)
	host.RegisterCommands(cmd)
	network.RegisterCommands(cmd)
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := NewNetHostCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
