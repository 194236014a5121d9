// Package serve holds the nethost daemon entrypoint: the "serve host"
// command that wires config, store, driver, engine, policy and the ops
// HTTP surface together and runs them until signalled to stop.
package serve

import (
	"github.com/spf13/cobra"
)

// RegisterCommands wires the serve parent and its host subcommand onto
// parent.
func RegisterCommands(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Parent command for running a nethost network-host process",
	}
	cmd.AddCommand(NewServeHostCommand())
	parent.AddCommand(cmd)
}
