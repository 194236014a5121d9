// Package host is the compute-host bootstrap admin command: run an
// arbitrary shell command against a freshly provisioned host over SSH
// before it is handed to a network-host process. Target address and
// credentials are operator-supplied flags, never hardcoded.
package host

import (
	"fmt"

	"github.com/spf13/cobra"

	"nethost.io/nethost/internal/clients/ssh"
)

func NewHostCommand() *cobra.Command {
	var (
		user            string
		addr            string
		port            int
		password        string
		privateKey      string
		knownHostsFile  string
		knownHostCheck  bool
		askAddKnownHost bool
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Run a command against a compute host over SSH",
	}
	cmd.PersistentFlags().StringVar(&user, "user", "root", "ssh user")
	cmd.PersistentFlags().StringVar(&addr, "addr", "", "target host address")
	cmd.PersistentFlags().IntVar(&port, "port", ssh.DefaultSSHPort, "ssh port")
	cmd.PersistentFlags().StringVar(&password, "password", "", "ssh password")
	cmd.PersistentFlags().StringVar(&privateKey, "private-key", "", "path to an ssh private key")
	cmd.PersistentFlags().StringVar(&knownHostsFile, "known-hosts", "", "known_hosts file to verify the host key against")
	cmd.PersistentFlags().BoolVar(&knownHostCheck, "known-host-check", true, "verify the host key against known_hosts")
	cmd.PersistentFlags().BoolVar(&askAddKnownHost, "ask-add-known-host", false, "prompt before recording an unknown host key in known_hosts")

	run := &cobra.Command{
		Use:   "run [command]",
		Short: "Run a single command on the target host and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				return fmt.Errorf("--addr is required")
			}
			client, err := ssh.New(user, addr, uint(port), password, privateKey, "", knownHostsFile, ssh.DefaultTimeout, knownHostCheck, askAddKnownHost)
			if err != nil {
				return err
			}
			output, err := client.Run(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", output, err)
			}
			fmt.Println(string(output))
			return nil
		},
	}
	cmd.AddCommand(run)
	return cmd
}

func RegisterCommands(parent *cobra.Command) {
	parent.AddCommand(NewHostCommand())
}
