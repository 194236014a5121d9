package version

import (
	"github.com/spf13/cobra"

	"nethost.io/nethost/internal/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of nethost.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Get())
		},
	}
}

func RegisterCommands(parent *cobra.Command) {
	parent.AddCommand(NewVersionCommand())
}
